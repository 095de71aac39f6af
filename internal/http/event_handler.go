package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Cefalo/quick-meet/internal/application"
)

// HeaderIdempotencyKey lets clients retry a create without booking twice.
const HeaderIdempotencyKey = "Idempotency-Key"

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	DeleteBooking(ctx context.Context, params application.DeleteBookingParams) error
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
}

type EventHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service bookingService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List handles GET /events. Events come back ordered by start time, most
// recently created first among events that start together.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	fieldErrors := make(map[string]string)
	start, err := parseTimeParam(query.Get("startTime"))
	if err != nil {
		fieldErrors["startTime"] = "start time must be an RFC 3339 timestamp"
	}
	end, err := parseTimeParam(query.Get("endTime"))
	if err != nil {
		fieldErrors["endTime"] = "end time must be an RFC 3339 timestamp"
	}
	if len(fieldErrors) > 0 {
		h.responder.writeValidation(r.Context(), w, fieldErrors)
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), application.ListBookingsParams{
		Principal: principal,
		Start:     start,
		End:       end,
		TimeZone:  strings.TrimSpace(query.Get("timeZone")),
	})
	if err != nil {
		h.log(r.Context(), "List").
			ErrorContext(r.Context(), "event listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(bookings)})
}

// Create handles POST /events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	input, ok := h.decodeInput(w, r, "Create")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Create", "room_email", input.RoomEmail)

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal:      principal,
		Input:          input,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", booking.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(booking)})
}

// Update handles PUT /events/{id}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	input, ok := h.decodeInput(w, r, "Update")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Update", "event_id", eventID)

	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		EventID:   eventID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(booking)})
}

// Delete handles DELETE /events/{id}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "event_id", eventID)

	if err := h.service.DeleteBooking(r.Context(), application.DeleteBookingParams{
		Principal: principal,
		EventID:   eventID,
	}); err != nil {
		logger.ErrorContext(r.Context(), "event deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) decodeInput(w http.ResponseWriter, r *http.Request, operation string) (application.BookingInput, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").
			InfoContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.BookingInput{}, false
	}

	input, fieldErrors := req.toInput()
	if len(fieldErrors) > 0 {
		h.responder.writeValidation(r.Context(), w, fieldErrors)
		return application.BookingInput{}, false
	}
	return input, true
}

type eventRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	StartTime        string   `json:"startTime"`
	Duration         int      `json:"duration"`
	TimeZone         string   `json:"timeZone"`
	Room             string   `json:"room"`
	Attendees        []string `json:"attendees"`
	CreateConference bool     `json:"conference"`
}

func (r eventRequest) toInput() (application.BookingInput, map[string]string) {
	start, err := parseTimeParam(r.StartTime)
	if err != nil {
		return application.BookingInput{}, map[string]string{"startTime": "start time must be an RFC 3339 timestamp"}
	}
	return application.BookingInput{
		Summary:          strings.TrimSpace(r.Title),
		Description:      r.Description,
		Start:            start,
		Duration:         time.Duration(r.Duration) * time.Minute,
		TimeZone:         strings.TrimSpace(r.TimeZone),
		RoomEmail:        strings.TrimSpace(r.Room),
		Attendees:        append([]string(nil), r.Attendees...),
		CreateConference: r.CreateConference,
	}, nil
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	TimeZone    string   `json:"timeZone,omitempty"`
	Organizer   string   `json:"organizer"`
	Attendees   []string `json:"attendees"`
	Room        *roomDTO `json:"room,omitempty"`
	MeetLink    string   `json:"meet,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	IsEditable  bool     `json:"isEditable"`
}

func toEventDTO(booking application.Booking) eventDTO {
	dto := eventDTO{
		ID:          booking.ID,
		Title:       booking.Summary,
		Description: booking.Description,
		Start:       booking.Start.UTC().Format(time.RFC3339),
		End:         booking.End.UTC().Format(time.RFC3339),
		TimeZone:    booking.TimeZone,
		Organizer:   booking.OrganizerEmail,
		Attendees:   append([]string{}, booking.Attendees...),
		MeetLink:    booking.MeetLink,
		IsEditable:  booking.IsEditable,
	}
	if booking.Room != nil {
		room := toRoomDTO(*booking.Room)
		dto.Room = &room
	}
	if !booking.CreatedAt.IsZero() {
		dto.CreatedAt = booking.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func toEventDTOs(bookings []application.Booking) []eventDTO {
	out := make([]eventDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toEventDTO(booking))
	}
	return out
}
