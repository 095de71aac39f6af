package application

import (
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// Principal identifies the caller. Identity is established upstream.
type Principal struct {
	Email  string
	Domain string
}

// AvailabilityRequest describes the window and room requirements of a
// booking attempt.
type AvailabilityRequest struct {
	WindowStart time.Time
	WindowEnd   time.Time
	// TimeZone is handed to the calendar provider as is.
	TimeZone string
	MinSeats int
	// Floor is the preferred floor; empty means no preference.
	Floor string
	// ExcludeEventID names an event whose room should be re-evaluated with
	// the delta check instead of the plain overlap test.
	ExcludeEventID string
}

// AvailableRooms holds free rooms split by floor preference, each list in
// seat-ascending order except for a re-included room at the front.
type AvailableRooms struct {
	Preferred []calendar.Room
	Others    []calendar.Room
}

// Booking is an event as presented to a caller.
type Booking struct {
	ID             string
	Summary        string
	Description    string
	Start          time.Time
	End            time.Time
	TimeZone       string
	OrganizerEmail string
	Attendees      []string
	// Room is nil when the event holds no room known to the catalog.
	Room       *calendar.Room
	MeetLink   string
	CreatedAt  time.Time
	IsEditable bool
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	Summary          string
	Description      string
	Start            time.Time
	Duration         time.Duration
	TimeZone         string
	RoomEmail        string
	Attendees        []string
	CreateConference bool
}

// End returns the exclusive end of the requested window.
func (in BookingInput) End() time.Time {
	return in.Start.Add(in.Duration)
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal      Principal
	Input          BookingInput
	IdempotencyKey string
}

// UpdateBookingParams wraps the data required to move or edit a booking.
type UpdateBookingParams struct {
	Principal Principal
	EventID   string
	Input     BookingInput
}

// DeleteBookingParams identifies the booking to delete.
type DeleteBookingParams struct {
	Principal Principal
	EventID   string
}

// ListBookingsParams bounds a booking listing.
type ListBookingsParams struct {
	Principal Principal
	Start     time.Time
	End       time.Time
	TimeZone  string
}
