package persistence

import "time"

// Room is a bookable resource as stored locally.
type Room struct {
	ID          string
	Email       string
	Name        string
	Domain      string
	Floor       string
	Seats       int
	Description string
}

// CatalogEntry is a cached room snapshot for one domain. Rooms keep the
// order they were saved in.
type CatalogEntry struct {
	Domain      string
	Rooms       []Room
	RefreshedAt time.Time
	ExpiresAt   time.Time
}

// Event is a booking stored by the local calendar.
type Event struct {
	ID             string
	Summary        string
	Description    string
	Location       string
	Start          time.Time
	End            time.Time
	TimeZone       string
	OrganizerEmail string
	RoomEmail      *string
	Attendees      []string
	MeetLink       *string
	IdempotencyKey *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventFilter narrows event queries. Zero values do not filter.
type EventFilter struct {
	// StartsBefore and EndsAfter select events overlapping [EndsAfter, StartsBefore).
	StartsBefore     time.Time
	EndsAfter        time.Time
	RoomEmails       []string
	ParticipantEmail string
}
