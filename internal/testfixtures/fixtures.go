package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

var eventCounter uint64

var referenceTime = time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference day at the given UTC wall clock time.
func At(hour, minute int) time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

// DefaultDomain is the organisation domain used by room fixtures.
const DefaultDomain = "example.com"

// ----------------------------- Room fixtures -----------------------------

// RoomOption configures the generated room fixture.
type RoomOption func(*calendar.Room)

// NewRoom returns a room named name whose email and id derive from the name.
func NewRoom(name string, seats int, floor string, opts ...RoomOption) calendar.Room {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	room := calendar.Room{
		ID:     "room-" + slug,
		Email:  slug + ".room@resource.calendar.google.com",
		Name:   name,
		Domain: DefaultDomain,
		Floor:  floor,
		Seats:  seats,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomDomain overrides the room domain.
func WithRoomDomain(domain string) RoomOption {
	return func(r *calendar.Room) {
		r.Domain = domain
	}
}

// WithRoomEmail overrides the room email.
func WithRoomEmail(email string) RoomOption {
	return func(r *calendar.Room) {
		r.Email = email
	}
}

// Cedar, Aurora and the rest mirror the demo office used across tests.
var (
	Cedar   = NewRoom("Cedar", 8, "F1")
	Aurora  = NewRoom("Aurora", 12, "F1")
	Oasis   = NewRoom("Oasis", 7, "F2")
	Summit  = NewRoom("Summit", 18, "F3")
	Cascade = NewRoom("Cascade", 6, "F2")
	Zen     = NewRoom("Zen Conference", 10, "F3")
)

// DemoRooms returns the demo office in directory order.
func DemoRooms() []calendar.Room {
	return []calendar.Room{Cedar, Aurora, Oasis, Summit, Cascade, Zen}
}

// ----------------------------- Event fixtures -----------------------------

// EventOption configures the generated event fixture.
type EventOption func(*calendar.Event)

// NewEvent returns an event held in room from start to end.
func NewEvent(room calendar.Room, start, end time.Time, opts ...EventOption) calendar.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	event := calendar.Event{
		ID:             fmt.Sprintf("event-%03d", idx),
		Summary:        "Sync",
		Location:       room.Name,
		Start:          start,
		End:            end,
		TimeZone:       "UTC",
		OrganizerEmail: "organizer@example.com",
		RoomEmail:      room.Email,
		CreatedAt:      referenceTime.Add(-time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the event identifier.
func WithEventID(id string) EventOption {
	return func(e *calendar.Event) {
		e.ID = id
	}
}

// WithOrganizer overrides the organizer email.
func WithOrganizer(email string) EventOption {
	return func(e *calendar.Event) {
		e.OrganizerEmail = email
	}
}

// WithAttendees sets the attendee list.
func WithAttendees(emails ...string) EventOption {
	return func(e *calendar.Event) {
		e.Attendees = append([]string(nil), emails...)
	}
}

// WithTimeZone overrides the zone the event was created in.
func WithTimeZone(zone string) EventOption {
	return func(e *calendar.Event) {
		e.TimeZone = zone
	}
}

// WithCreatedAt overrides the creation timestamp.
func WithCreatedAt(t time.Time) EventOption {
	return func(e *calendar.Event) {
		e.CreatedAt = t
	}
}
