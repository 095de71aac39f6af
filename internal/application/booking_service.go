package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/scheduler"
)

const (
	defaultSummary     = "-"
	defaultDescription = "A quick meeting created by Quick Meet"
	maxSummaryLength   = 256
)

// BookingService creates, moves, lists and deletes room bookings on the
// calendar provider.
type BookingService struct {
	rooms     RoomCatalog
	calendar  calendar.Provider
	validator *RescheduleValidator
	now       func() time.Time
	logger    *slog.Logger
}

// NewBookingService wires the booking flow.
func NewBookingService(rooms RoomCatalog, provider calendar.Provider, validator *RescheduleValidator, now func() time.Time, logger *slog.Logger) *BookingService {
	if validator == nil {
		validator = NewRescheduleValidator(provider, logger)
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		rooms:     rooms,
		calendar:  provider,
		validator: validator,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking books the selected room after confirming it is free for the
// whole window.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"organizer", params.Principal.Email,
		"room_email", params.Input.RoomEmail,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	vErr := validateBookingInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room calendar.Room
	room, err = s.lookupRoom(ctx, params.Principal.Domain, params.Input.RoomEmail)
	if err != nil {
		return
	}

	eventID := IdempotentEventID(params.Principal.Email, params.IdempotencyKey)
	if eventID != "" {
		var replayed bool
		booking, replayed, err = s.replay(ctx, eventID, params.Principal, room)
		if err != nil || replayed {
			return
		}
	}

	start, end := params.Input.Start, params.Input.End()
	var free bool
	free, err = s.validator.IsRoomAvailable(ctx, room.Email, start, end, params.Input.TimeZone)
	if err != nil {
		return
	}
	if !free {
		err = &ConflictError{Room: room, Start: start, End: end, Reason: "room has already been booked"}
		return
	}

	event := s.buildEvent(calendar.Event{}, params.Principal, params.Input, room)
	event.IdempotencyKey = eventID

	var created calendar.Event
	created, err = s.calendar.CreateEvent(ctx, event)
	if err != nil {
		err = withConflictContext(mapProviderError("create event", err), room, start, end)
		return
	}

	booking = toBooking(created, &room, params.Principal.Email)
	return
}

// replay returns the booking a previous attempt with the same idempotency key
// already created for principal.
func (s *BookingService) replay(ctx context.Context, eventID string, principal Principal, room calendar.Room) (Booking, bool, error) {
	existing, err := s.calendar.GetEvent(ctx, eventID)
	if errors.Is(err, calendar.ErrNotFound) {
		return Booking{}, false, nil
	}
	if err != nil {
		return Booking{}, false, mapProviderError("get event", err)
	}
	if !sameEmail(existing.OrganizerEmail, principal.Email) {
		return Booking{}, false, ErrForbidden
	}
	s.loggerWith(ctx, "CreateBooking", "event_id", eventID).
		InfoContext(ctx, "idempotent create replayed")
	var held *calendar.Room
	if sameEmail(existing.RoomEmail, room.Email) {
		held = &room
	}
	return toBooking(existing, held, principal.Email), true, nil
}

// UpdateBooking moves or edits an event owned by the caller. When the room is
// unchanged only the newly covered time is checked; a new room is checked for
// the whole window.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"organizer", params.Principal.Email,
		"event_id", params.EventID,
		"room_email", params.Input.RoomEmail,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking updated")
	}()

	vErr := validateBookingInput(params.Input)
	if strings.TrimSpace(params.EventID) == "" {
		vErr.add("event_id", "event id is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing calendar.Event
	existing, err = s.calendar.GetEvent(ctx, params.EventID)
	if err != nil {
		err = mapProviderError("get event", err)
		return
	}
	if !sameEmail(existing.OrganizerEmail, params.Principal.Email) {
		err = ErrForbidden
		return
	}

	var room calendar.Room
	room, err = s.lookupRoom(ctx, params.Principal.Domain, params.Input.RoomEmail)
	if err != nil {
		return
	}

	start, end := params.Input.Start, params.Input.End()
	var free bool
	if sameEmail(existing.RoomEmail, room.Email) {
		free, err = s.validator.IsRoomAvailableForChange(ctx, room.Email, existing.Start, existing.End, start, end, existing.TimeZone)
	} else {
		free, err = s.validator.IsRoomAvailable(ctx, room.Email, start, end, params.Input.TimeZone)
	}
	if err != nil {
		return
	}
	if !free {
		err = &ConflictError{Room: room, Start: start, End: end, Reason: "room is not available within the set duration"}
		return
	}

	event := s.buildEvent(existing, params.Principal, params.Input, room)

	var updated calendar.Event
	updated, err = s.calendar.UpdateEvent(ctx, params.EventID, event)
	if err != nil {
		err = withConflictContext(mapProviderError("update event", err), room, start, end)
		return
	}

	booking = toBooking(updated, &room, params.Principal.Email)
	return
}

// DeleteBooking removes an event owned by the caller.
func (s *BookingService) DeleteBooking(ctx context.Context, params DeleteBookingParams) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"organizer", params.Principal.Email,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if strings.TrimSpace(params.EventID) == "" {
		vErr := &ValidationError{}
		vErr.add("event_id", "event id is required")
		return vErr
	}

	existing, err := s.calendar.GetEvent(ctx, params.EventID)
	if err != nil {
		return mapProviderError("get event", err)
	}
	if !sameEmail(existing.OrganizerEmail, params.Principal.Email) {
		return ErrForbidden
	}
	if err = s.calendar.DeleteEvent(ctx, params.EventID); err != nil {
		return mapProviderError("delete event", err)
	}
	return nil
}

// ListBookings returns the caller's events in the range, ordered by start with
// the most recently created first among events that start together.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListBookings", "principal", params.Principal.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "bookings listed", "count", len(bookings))
	}()

	vErr := &ValidationError{}
	if params.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if params.End.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if !params.Start.IsZero() && !params.End.IsZero() && !params.Start.Before(params.End) {
		vErr.add("time", "start must be before end")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var rooms []calendar.Room
	rooms, err = s.rooms.GetRooms(ctx, params.Principal.Domain)
	if err != nil {
		err = mapCatalogError(err)
		return
	}

	var events []calendar.Event
	events, err = s.calendar.ListEvents(ctx, params.Principal.Email, params.Start, params.End, params.TimeZone)
	if err != nil {
		err = mapProviderError("list events", err)
		return
	}

	ordered := scheduler.SortEvents(events)
	bookings = make([]Booking, 0, len(ordered))
	for _, event := range ordered {
		var room *calendar.Room
		if match, ok := calendar.FindRoomByEmail(rooms, event.RoomEmail); ok && event.RoomEmail != "" {
			room = &match
		}
		bookings = append(bookings, toBooking(event, room, params.Principal.Email))
	}
	return
}

func (s *BookingService) lookupRoom(ctx context.Context, domain, email string) (calendar.Room, error) {
	rooms, err := s.rooms.GetRooms(ctx, domain)
	if err != nil {
		return calendar.Room{}, mapCatalogError(err)
	}
	for _, room := range rooms {
		if sameEmail(room.Email, email) {
			return room, nil
		}
	}
	return calendar.Room{}, fmt.Errorf("room %s: %w", email, ErrNotFound)
}

// buildEvent overlays the caller's input on base. The organizer and room are
// kept out of Attendees; providers add them when writing the event.
func (s *BookingService) buildEvent(base calendar.Event, principal Principal, input BookingInput, room calendar.Room) calendar.Event {
	event := base.Clone()
	event.Summary = strings.TrimSpace(input.Summary)
	if event.Summary == "" {
		event.Summary = defaultSummary
	}
	event.Description = strings.TrimSpace(input.Description)
	if event.Description == "" {
		event.Description = defaultDescription
	}
	event.Location = room.Name
	event.Start = input.Start
	event.End = input.End()
	if input.TimeZone != "" || event.TimeZone == "" {
		event.TimeZone = input.TimeZone
	}
	if event.OrganizerEmail == "" {
		event.OrganizerEmail = principal.Email
	}
	event.RoomEmail = room.Email
	event.Attendees = normalizeAttendees(input.Attendees, event.OrganizerEmail, room.Email)
	event.CreateConference = input.CreateConference
	if !input.CreateConference {
		event.MeetLink = ""
	}
	event.CreatedAt = s.now().UTC()
	return event
}

func validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if input.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}
	if strings.TrimSpace(input.RoomEmail) == "" {
		vErr.add("room", "room is required")
	}
	if len(input.Summary) > maxSummaryLength {
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxSummaryLength))
	}
	for _, attendee := range input.Attendees {
		if !validEmail(attendee) {
			vErr.add("attendees", fmt.Sprintf("invalid attendee email provided: %s", attendee))
			break
		}
	}
	if input.TimeZone != "" {
		if _, err := time.LoadLocation(input.TimeZone); err != nil {
			vErr.add("time_zone", "unknown time zone")
		}
	}
	return vErr
}

func validEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	return addr.Address == value && strings.Contains(value[strings.LastIndex(value, "@")+1:], ".")
}

// normalizeAttendees trims, lowercases and de-duplicates addresses, dropping
// the organizer and the room.
func normalizeAttendees(attendees []string, organizer, room string) []string {
	seen := map[string]struct{}{
		strings.ToLower(organizer): {},
		strings.ToLower(room):      {},
	}
	out := make([]string, 0, len(attendees))
	for _, attendee := range attendees {
		email := strings.ToLower(strings.TrimSpace(attendee))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// withConflictContext fills in the room and window of a provider rejection.
func withConflictContext(err error, room calendar.Room, start, end time.Time) error {
	var cErr *ConflictError
	if errors.As(err, &cErr) {
		cErr.Room = room
		cErr.Start = start
		cErr.End = end
	}
	return err
}

func toBooking(event calendar.Event, room *calendar.Room, viewer string) Booking {
	booking := Booking{
		ID:             event.ID,
		Summary:        event.Summary,
		Description:    event.Description,
		Start:          event.Start,
		End:            event.End,
		TimeZone:       event.TimeZone,
		OrganizerEmail: event.OrganizerEmail,
		Attendees:      append([]string(nil), event.Attendees...),
		MeetLink:       event.MeetLink,
		CreatedAt:      event.CreatedAt,
		IsEditable:     sameEmail(event.OrganizerEmail, viewer),
	}
	if room != nil {
		copied := *room
		booking.Room = &copied
	}
	// Events without a room usually carry an external meeting link as their location.
	if booking.Room == nil && booking.MeetLink == "" && strings.HasPrefix(event.Location, "http") {
		booking.MeetLink = event.Location
	}
	return booking
}
