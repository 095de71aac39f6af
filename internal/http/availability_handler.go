package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Cefalo/quick-meet/internal/application"
	"github.com/Cefalo/quick-meet/internal/calendar"
)

type availabilityService interface {
	FindAvailableRooms(ctx context.Context, req application.AvailabilityRequest, domain string) (application.AvailableRooms, error)
}

// AvailabilityHandler answers room availability queries. Queries from the
// same caller are coordinated so a newer one cancels an older one still in
// flight.
type AvailabilityHandler struct {
	service     availabilityService
	coordinator *application.QueryCoordinator
	responder   responder
	logger      *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, coordinator *application.QueryCoordinator, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, coordinator: coordinator, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

// Available handles GET /rooms/available.
func (h *AvailabilityHandler) Available(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	req, fieldErrors := parseAvailabilityQuery(r.URL.Query())
	if len(fieldErrors) > 0 {
		h.log(r.Context(), "Available", "error_kind", "validation").
			InfoContext(r.Context(), "invalid availability query", "fields", fieldErrors)
		h.responder.writeValidation(r.Context(), w, fieldErrors)
		return
	}

	ctx, done := h.coordinator.Begin(r.Context(), principal.Email)
	defer done()

	result, err := h.service.FindAvailableRooms(ctx, req, principal.Domain)
	if err != nil {
		h.log(r.Context(), "Available").
			DebugContext(r.Context(), "availability query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availableRoomsResponse{
		Preferred: toRoomDTOs(result.Preferred),
		Others:    toRoomDTOs(result.Others),
	})
}

func parseAvailabilityQuery(query url.Values) (application.AvailabilityRequest, map[string]string) {
	fieldErrors := make(map[string]string)
	req := application.AvailabilityRequest{
		TimeZone:       strings.TrimSpace(query.Get("timeZone")),
		Floor:          strings.TrimSpace(query.Get("floor")),
		ExcludeEventID: strings.TrimSpace(query.Get("eventId")),
		MinSeats:       1,
	}

	start, err := parseTimeParam(query.Get("startTime"))
	switch {
	case err != nil:
		fieldErrors["startTime"] = "start time must be an RFC 3339 timestamp"
	case start.IsZero():
		fieldErrors["startTime"] = "start time is required"
	}

	duration, ok := parseMinutes(query.Get("duration"))
	if !ok {
		fieldErrors["duration"] = "duration must be a positive number of minutes"
	}

	if value := strings.TrimSpace(query.Get("seats")); value != "" {
		seats, err := strconv.Atoi(value)
		if err != nil || seats < 0 {
			fieldErrors["seats"] = "seats must be a non-negative integer"
		} else {
			req.MinSeats = seats
		}
	}

	if req.TimeZone != "" {
		if _, err := time.LoadLocation(req.TimeZone); err != nil {
			fieldErrors["timeZone"] = "unknown time zone"
		}
	}

	if len(fieldErrors) > 0 {
		return application.AvailabilityRequest{}, fieldErrors
	}

	req.WindowStart = start
	req.WindowEnd = start.Add(duration)
	return req, nil
}

func parseMinutes(value string) (time.Duration, bool) {
	minutes, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || minutes <= 0 {
		return 0, false
	}
	return time.Duration(minutes) * time.Minute, true
}

// parseTimeParam returns the zero time for an empty value.
func parseTimeParam(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

type availableRoomsResponse struct {
	Preferred []roomDTO `json:"preferred"`
	Others    []roomDTO `json:"others"`
}

type roomDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Floor       string `json:"floor,omitempty"`
	Seats       int    `json:"seats"`
	Description string `json:"description,omitempty"`
}

func toRoomDTO(room calendar.Room) roomDTO {
	return roomDTO{
		ID:          room.ID,
		Email:       room.Email,
		Name:        room.Name,
		Floor:       room.Floor,
		Seats:       room.Seats,
		Description: room.Description,
	}
}

// toRoomDTOs never returns nil so empty lists encode as [].
func toRoomDTOs(rooms []calendar.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
