package calendar

import (
	"context"
	"time"
)

// Directory lists the bookable rooms of an organisational domain.
type Directory interface {
	ListRooms(ctx context.Context, domain string) ([]Room, error)
}

// Provider is the narrow calendar collaborator consumed by the scheduling
// core. Implementations are selected when the process is wired, never per
// request.
type Provider interface {
	Directory

	// FreeBusy returns the busy intervals of each requested room within
	// [windowStart, windowEnd). Rooms the provider could not resolve are
	// omitted from the result.
	FreeBusy(ctx context.Context, roomEmails []string, windowStart, windowEnd time.Time, timeZone string) (map[string][]BusyInterval, error)
	GetEvent(ctx context.Context, eventID string) (Event, error)
	// ListEvents returns the events overlapping [start, end) that
	// participantEmail organizes or attends.
	ListEvents(ctx context.Context, participantEmail string, start, end time.Time, timeZone string) ([]Event, error)
	// CreateEvent fails with ErrRejected when the provider refuses the
	// booking, for example because the room is already taken.
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, eventID string, event Event) (Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}
