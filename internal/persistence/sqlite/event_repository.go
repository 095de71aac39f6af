package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Cefalo/quick-meet/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite. Room
// overlap checks run in the same transaction as the write, so two writers
// cannot both claim a room.
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates an event repository over pool.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

var _ persistence.EventRepository = (*EventRepository)(nil)

const eventColumns = `id, summary, description, location, start_at, end_at, time_zone,
	organizer_email, room_email, meet_link, idempotency_key, created_at, updated_at`

// CreateEvent inserts event. It returns persistence.ErrOverlap when the room
// is booked during the event and persistence.ErrDuplicate when the id or
// idempotency key is already used.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := checkOverlap(ctx, tx, event); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			event.ID, event.Summary, event.Description, event.Location,
			toMillis(event.Start), toMillis(event.End), event.TimeZone,
			event.OrganizerEmail, nullableString(event.RoomEmail), nullableString(event.MeetLink),
			nullableString(event.IdempotencyKey), toMillis(event.CreatedAt), toMillis(event.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		return replaceAttendees(ctx, tx, event.ID, event.Attendees)
	})
}

// UpdateEvent overwrites the stored event with the same id. The idempotency
// key is never changed.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := checkOverlap(ctx, tx, event); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE events SET
				summary = ?, description = ?, location = ?, start_at = ?, end_at = ?,
				time_zone = ?, organizer_email = ?, room_email = ?, meet_link = ?,
				created_at = ?, updated_at = ?
			WHERE id = ?
		`,
			event.Summary, event.Description, event.Location,
			toMillis(event.Start), toMillis(event.End), event.TimeZone,
			event.OrganizerEmail, nullableString(event.RoomEmail), nullableString(event.MeetLink),
			toMillis(event.CreatedAt), toMillis(event.UpdatedAt), event.ID,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return replaceAttendees(ctx, tx, event.ID, event.Attendees)
	})
}

// GetEvent returns the event with id.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
}

// GetEventByIdempotencyKey returns the event created with key.
func (r *EventRepository) GetEventByIdempotencyKey(ctx context.Context, key string) (persistence.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE idempotency_key = ?`, key)
}

func (r *EventRepository) getOne(ctx context.Context, query string, arg any) (persistence.Event, error) {
	event, err := scanEvent(r.pool.DB().QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Event{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Event{}, mapError(err)
	}
	attendees, err := r.loadAttendees(ctx, event.ID)
	if err != nil {
		return persistence.Event{}, err
	}
	event.Attendees = attendees
	return event, nil
}

// ListEvents returns the events matching filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.StartsBefore.IsZero() {
		clauses = append(clauses, "start_at < ?")
		args = append(args, toMillis(filter.StartsBefore))
	}
	if !filter.EndsAfter.IsZero() {
		clauses = append(clauses, "end_at > ?")
		args = append(args, toMillis(filter.EndsAfter))
	}
	if len(filter.RoomEmails) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.RoomEmails)), ", ")
		clauses = append(clauses, "room_email IN ("+placeholders+")")
		for _, email := range filter.RoomEmails {
			args = append(args, email)
		}
	}
	if filter.ParticipantEmail != "" {
		clauses = append(clauses, `(lower(organizer_email) = lower(?) OR EXISTS (
			SELECT 1 FROM event_attendees a WHERE a.event_id = events.id AND lower(a.email) = lower(?)))`)
		args = append(args, filter.ParticipantEmail, filter.ParticipantEmail)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at, id"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, mapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError(err)
	}
	rows.Close()

	for i := range events {
		attendees, err := r.loadAttendees(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Attendees = attendees
	}
	return events, nil
}

// DeleteEvent removes the event with id.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *EventRepository) loadAttendees(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT email FROM event_attendees WHERE event_id = ? ORDER BY position`, eventID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	attendees := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, mapError(err)
		}
		attendees = append(attendees, email)
	}
	return attendees, mapError(rows.Err())
}

func validateEvent(event persistence.Event) error {
	switch {
	case strings.TrimSpace(event.ID) == "":
		return fmt.Errorf("%w: event id is required", persistence.ErrConstraintViolation)
	case strings.TrimSpace(event.OrganizerEmail) == "":
		return fmt.Errorf("%w: organizer email is required", persistence.ErrConstraintViolation)
	case !event.End.After(event.Start):
		return fmt.Errorf("%w: event must end after it starts", persistence.ErrConstraintViolation)
	}
	return nil
}

// checkOverlap rejects event when another event holds its room during
// [Start, End).
func checkOverlap(ctx context.Context, tx *sql.Tx, event persistence.Event) error {
	if event.RoomEmail == nil {
		return nil
	}
	var clash string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM events
		WHERE room_email = ? AND id <> ? AND start_at < ? AND end_at > ?
		LIMIT 1
	`, *event.RoomEmail, event.ID, toMillis(event.End), toMillis(event.Start)).Scan(&clash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return mapError(err)
	}
	return fmt.Errorf("%w: room %s is held by event %s", persistence.ErrOverlap, *event.RoomEmail, clash)
}

func replaceAttendees(ctx context.Context, tx *sql.Tx, eventID string, attendees []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = ?`, eventID); err != nil {
		return mapError(err)
	}
	seen := make(map[string]bool, len(attendees))
	position := 0
	for _, email := range attendees {
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_attendees (event_id, email, position) VALUES (?, ?, ?)`,
			eventID, email, position,
		); err != nil {
			return mapError(err)
		}
		position++
	}
	return nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                     persistence.Event
		startAt, endAt            int64
		createdAt, updatedAt      int64
		roomEmail, meetLink, idem sql.NullString
	)
	err := row.Scan(
		&event.ID, &event.Summary, &event.Description, &event.Location,
		&startAt, &endAt, &event.TimeZone, &event.OrganizerEmail,
		&roomEmail, &meetLink, &idem, &createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Event{}, err
	}
	event.Start = fromMillis(startAt)
	event.End = fromMillis(endAt)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	event.RoomEmail = stringPtr(roomEmail)
	event.MeetLink = stringPtr(meetLink)
	event.IdempotencyKey = stringPtr(idem)
	return event, nil
}
