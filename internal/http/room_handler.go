package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Cefalo/quick-meet/internal/application"
	"github.com/Cefalo/quick-meet/internal/calendar"
)

type roomService interface {
	ListRooms(ctx context.Context, principal application.Principal) ([]calendar.Room, error)
	ListFloors(ctx context.Context, principal application.Principal) ([]string, error)
	HighestSeatCapacity(ctx context.Context, principal application.Principal) (int, error)
	RefreshRooms(ctx context.Context, principal application.Principal) ([]calendar.Room, error)
}

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "domain", principal.Domain).
			ErrorContext(r.Context(), "room listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) Floors(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	floors, err := h.service.ListFloors(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Floors", "domain", principal.Domain).
			ErrorContext(r.Context(), "floor listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if floors == nil {
		floors = []string{}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, floorsResponse{Floors: floors})
}

func (h *RoomHandler) HighestSeatCount(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	seats, err := h.service.HighestSeatCapacity(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "HighestSeatCount", "domain", principal.Domain).
			ErrorContext(r.Context(), "seat capacity lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, seatCountResponse{Seats: seats})
}

func (h *RoomHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Refresh", "domain", principal.Domain)

	rooms, err := h.service.RefreshRooms(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "room refresh failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room catalog refreshed", "rooms", len(rooms))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type floorsResponse struct {
	Floors []string `json:"floors"`
}

type seatCountResponse struct {
	Seats int `json:"seats"`
}
