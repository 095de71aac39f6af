// Package local implements calendar.Provider on top of the SQLite
// repositories, for deployments without a Google Workspace tenant and for
// development.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/persistence"
)

// DefaultMeetBaseURL prefixes the conference links of local events.
const DefaultMeetBaseURL = "https://meet.local"

// Options tune a Provider. Zero values fall back to defaults.
type Options struct {
	Now         func() time.Time
	NewID       func() string
	MeetBaseURL string
	Logger      *slog.Logger
}

// Provider serves rooms and events from local storage. Room double-booking is
// refused by the event repository, which surfaces as calendar.ErrRejected.
type Provider struct {
	rooms       persistence.RoomRepository
	events      persistence.EventRepository
	now         func() time.Time
	newID       func() string
	meetBaseURL string
	logger      *slog.Logger
}

// New wires a provider over the room and event repositories.
func New(rooms persistence.RoomRepository, events persistence.EventRepository, opts Options) *Provider {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.MeetBaseURL == "" {
		opts.MeetBaseURL = DefaultMeetBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provider{
		rooms:       rooms,
		events:      events,
		now:         opts.Now,
		newID:       opts.NewID,
		meetBaseURL: strings.TrimRight(opts.MeetBaseURL, "/"),
		logger:      opts.Logger.With("component", "local_calendar"),
	}
}

var _ calendar.Provider = (*Provider)(nil)

func (p *Provider) ListRooms(ctx context.Context, domain string) ([]calendar.Room, error) {
	stored, err := p.rooms.ListRooms(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms := make([]calendar.Room, 0, len(stored))
	for _, room := range stored {
		rooms = append(rooms, toCalendarRoom(room))
	}
	return rooms, nil
}

// FreeBusy reports the bookings of each known room overlapping the window.
// Unknown rooms are left out of the result.
func (p *Provider) FreeBusy(ctx context.Context, roomEmails []string, windowStart, windowEnd time.Time, timeZone string) (map[string][]calendar.BusyInterval, error) {
	result := make(map[string][]calendar.BusyInterval, len(roomEmails))
	known := make([]string, 0, len(roomEmails))
	for _, email := range roomEmails {
		if _, err := p.rooms.GetRoomByEmail(ctx, email); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("look up room %s: %w", email, err)
		}
		result[email] = []calendar.BusyInterval{}
		known = append(known, email)
	}
	if len(known) == 0 {
		return result, nil
	}

	events, err := p.events.ListEvents(ctx, persistence.EventFilter{
		StartsBefore: windowEnd,
		EndsAfter:    windowStart,
		RoomEmails:   known,
	})
	if err != nil {
		return nil, fmt.Errorf("list busy events: %w", err)
	}
	for _, event := range events {
		if event.RoomEmail == nil {
			continue
		}
		result[*event.RoomEmail] = append(result[*event.RoomEmail], calendar.BusyInterval{Start: event.Start, End: event.End})
	}
	return result, nil
}

func (p *Provider) GetEvent(ctx context.Context, eventID string) (calendar.Event, error) {
	stored, err := p.events.GetEvent(ctx, eventID)
	if err != nil {
		return calendar.Event{}, mapError(err)
	}
	return toCalendarEvent(stored), nil
}

func (p *Provider) ListEvents(ctx context.Context, participantEmail string, start, end time.Time, timeZone string) ([]calendar.Event, error) {
	stored, err := p.events.ListEvents(ctx, persistence.EventFilter{
		StartsBefore:     end,
		EndsAfter:        start,
		ParticipantEmail: participantEmail,
	})
	if err != nil {
		return nil, mapError(err)
	}
	events := make([]calendar.Event, 0, len(stored))
	for _, event := range stored {
		events = append(events, toCalendarEvent(event))
	}
	return events, nil
}

// CreateEvent stores event. A repeated idempotency key returns the event the
// first call created.
func (p *Provider) CreateEvent(ctx context.Context, event calendar.Event) (calendar.Event, error) {
	if event.IdempotencyKey != "" {
		existing, err := p.events.GetEventByIdempotencyKey(ctx, event.IdempotencyKey)
		if err == nil {
			return toCalendarEvent(existing), nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return calendar.Event{}, mapError(err)
		}
		event.ID = event.IdempotencyKey
	} else {
		event.ID = p.newID()
	}

	now := p.now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.CreateConference {
		event.MeetLink = p.meetBaseURL + "/" + event.ID
	}

	stored := toStoredEvent(event)
	stored.UpdatedAt = now
	if err := p.events.CreateEvent(ctx, stored); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) && event.IdempotencyKey != "" {
			if existing, getErr := p.events.GetEventByIdempotencyKey(ctx, event.IdempotencyKey); getErr == nil {
				return toCalendarEvent(existing), nil
			}
		}
		return calendar.Event{}, mapError(err)
	}
	p.logger.DebugContext(ctx, "local event created", "event_id", event.ID, "room_email", event.RoomEmail)
	return p.GetEvent(ctx, event.ID)
}

func (p *Provider) UpdateEvent(ctx context.Context, eventID string, event calendar.Event) (calendar.Event, error) {
	existing, err := p.events.GetEvent(ctx, eventID)
	if err != nil {
		return calendar.Event{}, mapError(err)
	}

	event.ID = eventID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = existing.CreatedAt
	}
	switch {
	case !event.CreateConference:
		event.MeetLink = ""
	case event.MeetLink == "" && existing.MeetLink != nil:
		event.MeetLink = *existing.MeetLink
	case event.MeetLink == "":
		event.MeetLink = p.meetBaseURL + "/" + eventID
	}

	stored := toStoredEvent(event)
	stored.IdempotencyKey = existing.IdempotencyKey
	stored.UpdatedAt = p.now().UTC()
	if err := p.events.UpdateEvent(ctx, stored); err != nil {
		return calendar.Event{}, mapError(err)
	}
	return p.GetEvent(ctx, eventID)
}

func (p *Provider) DeleteEvent(ctx context.Context, eventID string) error {
	return mapError(p.events.DeleteEvent(ctx, eventID))
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", calendar.ErrNotFound, err)
	case errors.Is(err, persistence.ErrOverlap),
		errors.Is(err, persistence.ErrDuplicate),
		errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %v", calendar.ErrRejected, err)
	default:
		return err
	}
}

func toCalendarRoom(room persistence.Room) calendar.Room {
	return calendar.Room{
		ID:          room.ID,
		Email:       room.Email,
		Name:        room.Name,
		Domain:      room.Domain,
		Floor:       room.Floor,
		Seats:       room.Seats,
		Description: room.Description,
	}
}

func toCalendarEvent(event persistence.Event) calendar.Event {
	out := calendar.Event{
		ID:             event.ID,
		Summary:        event.Summary,
		Description:    event.Description,
		Location:       event.Location,
		Start:          event.Start,
		End:            event.End,
		TimeZone:       event.TimeZone,
		OrganizerEmail: event.OrganizerEmail,
		Attendees:      append([]string(nil), event.Attendees...),
		CreatedAt:      event.CreatedAt,
	}
	if event.RoomEmail != nil {
		out.RoomEmail = *event.RoomEmail
	}
	if event.MeetLink != nil {
		out.MeetLink = *event.MeetLink
		out.CreateConference = true
	}
	if event.IdempotencyKey != nil {
		out.IdempotencyKey = *event.IdempotencyKey
	}
	return out
}

func toStoredEvent(event calendar.Event) persistence.Event {
	return persistence.Event{
		ID:             event.ID,
		Summary:        event.Summary,
		Description:    event.Description,
		Location:       event.Location,
		Start:          event.Start,
		End:            event.End,
		TimeZone:       event.TimeZone,
		OrganizerEmail: event.OrganizerEmail,
		RoomEmail:      optional(event.RoomEmail),
		Attendees:      append([]string(nil), event.Attendees...),
		MeetLink:       optional(event.MeetLink),
		IdempotencyKey: optional(event.IdempotencyKey),
		CreatedAt:      event.CreatedAt,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
