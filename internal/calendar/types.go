// Package calendar defines the boundary between the scheduling core and the
// calendar/directory provider that owns rooms and events.
package calendar

import "time"

// Room is a bookable resource from the organisation directory. Rooms are
// snapshots taken at fetch time and are never mutated in place.
type Room struct {
	ID          string
	Email       string
	Name        string
	Domain      string
	Floor       string
	Seats       int
	Description string
}

// BusyInterval is a half-open [Start, End) span during which a room is occupied.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Event is a calendar entry as seen through the provider.
type Event struct {
	ID               string
	Summary          string
	Description      string
	Location         string
	Start            time.Time
	End              time.Time
	TimeZone         string
	OrganizerEmail   string
	RoomEmail        string
	Attendees        []string
	CreatedAt        time.Time
	MeetLink         string
	CreateConference bool
	IdempotencyKey   string
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	if e.Attendees != nil {
		out.Attendees = append([]string(nil), e.Attendees...)
	}
	return out
}

// CloneRooms copies a room slice so callers cannot alias cached state.
func CloneRooms(rooms []Room) []Room {
	if rooms == nil {
		return nil
	}
	out := make([]Room, len(rooms))
	copy(out, rooms)
	return out
}

// FindRoomByEmail returns the room addressed by email, if present.
func FindRoomByEmail(rooms []Room, email string) (Room, bool) {
	for _, room := range rooms {
		if room.Email == email {
			return room, true
		}
	}
	return Room{}, false
}
