package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.Error() != "" || nilErr.HasErrors() {
		t.Fatalf("nil validation error must be empty")
	}

	vErr := &ValidationError{}
	vErr.add("duration", "duration must be positive")
	vErr.add("room", "room is required")
	if !vErr.HasErrors() || len(vErr.FieldErrors) != 2 {
		t.Fatalf("expected two field errors, got %v", vErr.FieldErrors)
	}
	if vErr.Error() != "validation failed" {
		t.Fatalf("unexpected message %q", vErr.Error())
	}
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	err := error(&ConflictError{
		Room:   calendar.Room{Email: "cedar@example.com", Name: "Cedar"},
		Start:  start,
		End:    start.Add(time.Hour),
		Reason: "room has already been booked",
	})
	wrapped := fmt.Errorf("create: %w", err)

	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("expected errors.Is to match ErrConflict")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("conflict must not match ErrNotFound")
	}
	if msg := err.Error(); !strings.Contains(msg, "Cedar") || !strings.Contains(msg, "2024-01-15T10:00:00Z") {
		t.Fatalf("expected room and window in message, got %q", msg)
	}

	unnamed := &ConflictError{Room: calendar.Room{Email: "cedar@example.com"}}
	if !strings.Contains(unnamed.Error(), "cedar@example.com") {
		t.Fatalf("expected e-mail fallback, got %q", unnamed.Error())
	}
}

func TestMapProviderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	tests := []struct {
		name  string
		in    error
		check func(error) bool
	}{
		{name: "nil", in: nil, check: func(err error) bool { return err == nil }},
		{name: "canceled passes through", in: context.Canceled, check: func(err error) bool { return err == context.Canceled }},
		{name: "deadline passes through", in: context.DeadlineExceeded, check: func(err error) bool { return err == context.DeadlineExceeded }},
		{name: "not found", in: fmt.Errorf("event x: %w", calendar.ErrNotFound), check: func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{name: "rejected", in: calendar.ErrRejected, check: func(err error) bool {
			var cErr *ConflictError
			return errors.As(err, &cErr) && errors.Is(err, ErrConflict)
		}},
		{name: "anything else is upstream", in: boom, check: func(err error) bool {
			return errors.Is(err, ErrUpstreamUnavailable) && errors.Is(err, boom)
		}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := mapProviderError("op", tc.in); !tc.check(got) {
				t.Fatalf("unexpected mapping for %v: %v", tc.in, got)
			}
		})
	}
}
