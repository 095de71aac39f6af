package persistence

import "context"

// CatalogRepository stores room catalog snapshots per domain.
type CatalogRepository interface {
	SaveCatalog(ctx context.Context, entry CatalogEntry) error
	LoadCatalog(ctx context.Context, domain string) (CatalogEntry, error)
	DeleteCatalog(ctx context.Context, domain string) error
}

// RoomRepository stores the rooms served by the local calendar.
type RoomRepository interface {
	UpsertRoom(ctx context.Context, room Room) error
	GetRoomByEmail(ctx context.Context, email string) (Room, error)
	ListRooms(ctx context.Context, domain string) ([]Room, error)
}

// EventRepository stores bookings of the local calendar. CreateEvent and
// UpdateEvent return ErrOverlap when the room is already taken.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	GetEventByIdempotencyKey(ctx context.Context, key string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}
