package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Cefalo/quick-meet/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a room repository over pool.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

var _ persistence.RoomRepository = (*RoomRepository)(nil)

// UpsertRoom inserts room or updates the room with the same email.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if strings.TrimSpace(room.Email) == "" || strings.TrimSpace(room.ID) == "" {
		return fmt.Errorf("%w: room id and email are required", persistence.ErrConstraintViolation)
	}
	if room.Seats <= 0 {
		return fmt.Errorf("%w: room seats must be positive", persistence.ErrConstraintViolation)
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rooms (email, id, name, domain, floor, seats, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(email) DO UPDATE SET
				id = excluded.id,
				name = excluded.name,
				domain = excluded.domain,
				floor = excluded.floor,
				seats = excluded.seats,
				description = excluded.description
		`, room.Email, room.ID, room.Name, room.Domain, room.Floor, room.Seats, room.Description)
		return mapError(err)
	})
}

// GetRoomByEmail returns the room registered under email.
func (r *RoomRepository) GetRoomByEmail(ctx context.Context, email string) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, email, name, domain, floor, seats, description
		FROM rooms
		WHERE email = ?
	`, email)

	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Room{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns the rooms of domain ordered by seats, then name.
func (r *RoomRepository) ListRooms(ctx context.Context, domain string) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, email, name, domain, floor, seats, description
		FROM rooms
		WHERE domain = ?
		ORDER BY seats, name
	`, domain)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return rooms, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	err := row.Scan(&room.ID, &room.Email, &room.Name, &room.Domain, &room.Floor, &room.Seats, &room.Description)
	return room, err
}
