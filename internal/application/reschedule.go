package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/scheduler"
)

// FreeBusyLookup is the slice of the calendar provider needed to test a
// single room against a window.
type FreeBusyLookup interface {
	FreeBusy(ctx context.Context, roomEmails []string, windowStart, windowEnd time.Time, timeZone string) (map[string][]calendar.BusyInterval, error)
}

// RescheduleValidator decides whether a room can take a booking, either fresh
// or moved from an existing slot.
type RescheduleValidator struct {
	calendar FreeBusyLookup
	logger   *slog.Logger
}

// NewRescheduleValidator wires the validator to a free/busy source.
func NewRescheduleValidator(lookup FreeBusyLookup, logger *slog.Logger) *RescheduleValidator {
	return &RescheduleValidator{calendar: lookup, logger: defaultLogger(logger)}
}

// IsRoomAvailable checks the full [start, end) window on one room. A room the
// provider leaves out of its answer counts as unavailable.
func (v *RescheduleValidator) IsRoomAvailable(ctx context.Context, roomEmail string, start, end time.Time, timeZone string) (bool, error) {
	if v == nil || v.calendar == nil {
		return false, fmt.Errorf("reschedule validator not configured")
	}
	busy, err := v.calendar.FreeBusy(ctx, []string{roomEmail}, start, end, timeZone)
	if err != nil {
		return false, mapProviderError("freebusy", err)
	}
	intervals, ok := busy[roomEmail]
	if !ok {
		serviceLogger(ctx, v.logger, "RescheduleValidator", "IsRoomAvailable", "room_email", roomEmail).
			WarnContext(ctx, "room missing from free/busy response")
		return false, nil
	}
	return scheduler.IsFree(intervals, scheduler.Interval{Start: start, End: end}), nil
}

// IsRoomAvailableForChange checks only the parts of the new window that the
// current booking does not already cover. Moving to another calendar date in
// eventTimeZone checks the whole new window. A shrink needs no provider call.
func (v *RescheduleValidator) IsRoomAvailableForChange(ctx context.Context, roomEmail string, currentStart, currentEnd, newStart, newEnd time.Time, eventTimeZone string) (bool, error) {
	current := scheduler.Interval{Start: currentStart, End: currentEnd}
	proposed := scheduler.Interval{Start: newStart, End: newEnd}
	deltas := scheduler.ChangeDeltas(current, proposed, scheduler.LocationOrUTC(eventTimeZone))

	for _, delta := range deltas {
		ok, err := v.IsRoomAvailable(ctx, roomEmail, delta.Start, delta.End, eventTimeZone)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
