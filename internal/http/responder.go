package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Cefalo/quick-meet/internal/application"
)

// statusClientClosedRequest reports a request abandoned by its caller.
const statusClientClosedRequest = 499

var (
	errBadRequestBody  = errors.New("request body is not valid JSON")
	errInvalidEventID  = errors.New("event id is required")
	errMissingIdentity = errors.New("X-User-Email header is required")
	errInvalidIdentity = errors.New("X-User-Email header is not a valid address")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) writeValidation(ctx context.Context, w http.ResponseWriter, fieldErrors map[string]string) {
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "INVALID_INPUT",
		Message:   statusMessage(http.StatusUnprocessableEntity),
		Errors:    fieldErrors,
	})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr        *application.ValidationError
		conflictErr *application.ConflictError
	)

	switch {
	case errors.As(err, &vErr):
		r.writeValidation(ctx, w, vErr.FieldErrors)
	case errors.Is(err, application.ErrSuperseded):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "QUERY_SUPERSEDED",
			Message:   "a newer query replaced this one",
		})
	case errors.As(err, &conflictErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ROOM_CONFLICT",
			Message:   statusMessage(http.StatusConflict),
			Conflict:  toConflictDTO(conflictErr),
		})
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   statusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrUpstreamUnavailable):
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{
			ErrorCode: "UPSTREAM_UNAVAILABLE",
			Message:   statusMessage(http.StatusBadGateway),
		})
	case errors.Is(err, context.DeadlineExceeded):
		r.writeJSON(ctx, w, http.StatusGatewayTimeout, errorResponse{Message: statusMessage(http.StatusGatewayTimeout)})
	case errors.Is(err, context.Canceled):
		w.WriteHeader(statusClientClosedRequest)
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "caller identity is required"
	case http.StatusForbidden:
		return "only the organizer can change this event"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the room is not available for the requested time"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid fields"
	case http.StatusBadGateway:
		return "the calendar provider is unavailable"
	case http.StatusGatewayTimeout:
		return "the calendar provider did not answer in time"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDTO      `json:"conflict,omitempty"`
}

type conflictDTO struct {
	RoomName  string `json:"room_name,omitempty"`
	RoomEmail string `json:"room_email,omitempty"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

func toConflictDTO(err *application.ConflictError) *conflictDTO {
	if err == nil {
		return nil
	}
	dto := &conflictDTO{RoomName: err.Room.Name, RoomEmail: err.Room.Email}
	if !err.Start.IsZero() {
		dto.Start = err.Start.UTC().Format(time.RFC3339)
	}
	if !err.End.IsZero() {
		dto.End = err.End.UTC().Format(time.RFC3339)
	}
	return dto
}
