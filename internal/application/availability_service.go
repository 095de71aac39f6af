package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/scheduler"
)

// RoomCatalog exposes the cached room list of a domain.
type RoomCatalog interface {
	GetRooms(ctx context.Context, domain string) ([]calendar.Room, error)
}

// AvailabilityCalendar is the part of the calendar provider the resolver reads.
type AvailabilityCalendar interface {
	FreeBusyLookup
	GetEvent(ctx context.Context, eventID string) (calendar.Event, error)
}

// AvailabilityService resolves which rooms are free for a window.
type AvailabilityService struct {
	rooms     RoomCatalog
	calendar  AvailabilityCalendar
	validator *RescheduleValidator
	logger    *slog.Logger
}

// NewAvailabilityService wires the resolver. The validator re-evaluates the
// room of an event being rescheduled.
func NewAvailabilityService(rooms RoomCatalog, cal AvailabilityCalendar, validator *RescheduleValidator, logger *slog.Logger) *AvailabilityService {
	if validator == nil {
		validator = NewRescheduleValidator(cal, logger)
	}
	return &AvailabilityService{rooms: rooms, calendar: cal, validator: validator, logger: defaultLogger(logger)}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// FindAvailableRooms returns the rooms of domain with at least req.MinSeats
// seats that are free for the whole window, split by floor preference.
func (s *AvailabilityService) FindAvailableRooms(ctx context.Context, req AvailabilityRequest, domain string) (result AvailableRooms, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "FindAvailableRooms",
		"domain", domain,
		"min_seats", req.MinSeats,
		"floor", req.Floor,
	)
	defer func() {
		err = supersededCause(ctx, err)
		if errors.Is(err, ErrSuperseded) {
			logger.DebugContext(ctx, "availability query superseded")
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to resolve available rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "available rooms resolved",
			"preferred", len(result.Preferred),
			"others", len(result.Others),
		)
	}()

	result = AvailableRooms{Preferred: []calendar.Room{}, Others: []calendar.Room{}}

	var rooms []calendar.Room
	rooms, err = s.rooms.GetRooms(ctx, domain)
	if err != nil {
		err = mapCatalogError(err)
		return
	}

	preferred, others := partitionCandidates(rooms, req.MinSeats, req.Floor)
	if len(preferred) == 0 && len(others) == 0 {
		return
	}

	emails := make([]string, 0, len(preferred)+len(others))
	for _, room := range preferred {
		emails = append(emails, room.Email)
	}
	for _, room := range others {
		emails = append(emails, room.Email)
	}

	var busy map[string][]calendar.BusyInterval
	busy, err = s.calendar.FreeBusy(ctx, emails, req.WindowStart, req.WindowEnd, req.TimeZone)
	if err != nil {
		err = mapProviderError("freebusy", err)
		return
	}

	window := scheduler.Interval{Start: req.WindowStart, End: req.WindowEnd}
	result.Preferred = keepFree(preferred, busy, window)
	result.Others = keepFree(others, busy, window)

	if req.ExcludeEventID != "" {
		result, err = s.reincludeCurrentRoom(ctx, req, preferred, others, result)
	}
	return
}

// reincludeCurrentRoom puts the room held by req.ExcludeEventID back at the
// front of its list when the new window still fits it. The plain overlap test
// always rejects that room because the event's own occupancy shows as busy.
func (s *AvailabilityService) reincludeCurrentRoom(ctx context.Context, req AvailabilityRequest, preferred, others []calendar.Room, result AvailableRooms) (AvailableRooms, error) {
	event, err := s.calendar.GetEvent(ctx, req.ExcludeEventID)
	if err != nil {
		return result, mapProviderError("get event", err)
	}
	if event.RoomEmail == "" {
		return result, nil
	}

	room, isPreferred := calendar.FindRoomByEmail(preferred, event.RoomEmail)
	if !isPreferred {
		var ok bool
		if room, ok = calendar.FindRoomByEmail(others, event.RoomEmail); !ok {
			return result, nil
		}
	}

	ok, err := s.validator.IsRoomAvailableForChange(ctx, room.Email, event.Start, event.End, req.WindowStart, req.WindowEnd, event.TimeZone)
	if err != nil || !ok {
		return result, err
	}

	if isPreferred {
		result.Preferred = prependRoom(result.Preferred, room)
	} else {
		result.Others = prependRoom(result.Others, room)
	}
	s.loggerWith(ctx, "reincludeCurrentRoom", "event_id", event.ID, "room_email", room.Email).
		DebugContext(ctx, "current room re-included")
	return result, nil
}

// partitionCandidates keeps rooms with enough seats and splits them by floor
// preference. Input order is preserved in both lists.
func partitionCandidates(rooms []calendar.Room, minSeats int, floor string) (preferred, others []calendar.Room) {
	for _, room := range rooms {
		if room.Seats < minSeats {
			continue
		}
		if floor == "" || room.Floor == floor {
			preferred = append(preferred, room)
		} else {
			others = append(others, room)
		}
	}
	return preferred, others
}

func keepFree(rooms []calendar.Room, busy map[string][]calendar.BusyInterval, window scheduler.Interval) []calendar.Room {
	free := make([]calendar.Room, 0, len(rooms))
	for _, room := range rooms {
		intervals, ok := busy[room.Email]
		if !ok {
			continue
		}
		if scheduler.IsFree(intervals, window) {
			free = append(free, room)
		}
	}
	return free
}

// prependRoom moves room to the front, dropping any later copy of it.
func prependRoom(rooms []calendar.Room, room calendar.Room) []calendar.Room {
	out := make([]calendar.Room, 0, len(rooms)+1)
	out = append(out, room)
	for _, existing := range rooms {
		if existing.Email != room.Email {
			out = append(out, existing)
		}
	}
	return out
}
