package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/catalog"
)

var (
	// ErrNotFound is returned when the requested event or room does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal may not change an event.
	ErrForbidden = errors.New("application: forbidden")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("application: conflict")
	// ErrUpstreamUnavailable is matched by every *UpstreamError.
	ErrUpstreamUnavailable = errors.New("application: calendar provider unavailable")
	// ErrSuperseded is the cancellation cause of an availability query replaced
	// by a newer one with the same key.
	ErrSuperseded = errors.New("application: query superseded")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ConflictError reports that a room is already occupied during the requested window.
type ConflictError struct {
	Room   calendar.Room
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	name := e.Room.Name
	if name == "" {
		name = e.Room.Email
	}
	return fmt.Sprintf("room %s conflict for %s-%s: %s",
		name, e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339), e.Reason)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// UpstreamError wraps a calendar provider failure that is neither a missing
// resource nor a rejection.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("calendar provider %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstreamUnavailable) match.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// mapProviderError translates calendar boundary errors into the application
// taxonomy. Cancellation passes through untouched so callers can inspect the
// context cause.
func mapProviderError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, calendar.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, calendar.ErrRejected):
		return &ConflictError{Reason: err.Error()}
	default:
		return &UpstreamError{Op: op, Err: err}
	}
}

// mapCatalogError classifies a room catalog failure. Directory lookups go
// through mapProviderError; store and wiring failures stay internal.
func mapCatalogError(err error) error {
	var dirErr *catalog.DirectoryError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &dirErr):
		return mapProviderError("list rooms", err)
	default:
		return fmt.Errorf("load rooms: %w", err)
	}
}
