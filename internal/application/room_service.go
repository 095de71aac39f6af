package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// RoomInventory is the full catalog surface used for room level queries.
type RoomInventory interface {
	RoomCatalog
	Floors(ctx context.Context, domain string) ([]string, error)
	MaxSeats(ctx context.Context, domain string) (int, error)
	Refresh(ctx context.Context, domain string) ([]calendar.Room, error)
}

// RoomService answers room directory questions for a caller's domain.
type RoomService struct {
	rooms  RoomInventory
	logger *slog.Logger
}

// NewRoomService constructs a room service with the provided catalog.
func NewRoomService(rooms RoomInventory, logger *slog.Logger) *RoomService {
	return &RoomService{rooms: rooms, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// ListRooms returns the domain's rooms in seat-ascending order.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) ([]calendar.Room, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	rooms, err := s.rooms.GetRooms(ctx, principal.Domain)
	if err != nil {
		err = mapCatalogError(err)
		s.loggerWith(ctx, "ListRooms", "domain", principal.Domain).
			ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return rooms, nil
}

// ListFloors returns the distinct floors of the domain.
func (s *RoomService) ListFloors(ctx context.Context, principal Principal) ([]string, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	floors, err := s.rooms.Floors(ctx, principal.Domain)
	if err != nil {
		err = mapCatalogError(err)
		s.loggerWith(ctx, "ListFloors", "domain", principal.Domain).
			ErrorContext(ctx, "failed to list floors", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return floors, nil
}

// HighestSeatCapacity returns the seat count of the largest room.
func (s *RoomService) HighestSeatCapacity(ctx context.Context, principal Principal) (int, error) {
	if err := s.ready(principal); err != nil {
		return 0, err
	}
	seats, err := s.rooms.MaxSeats(ctx, principal.Domain)
	if err != nil {
		err = mapCatalogError(err)
		s.loggerWith(ctx, "HighestSeatCapacity", "domain", principal.Domain).
			ErrorContext(ctx, "failed to compute highest seat capacity", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	return seats, nil
}

// RefreshRooms reloads the domain's rooms from the directory.
func (s *RoomService) RefreshRooms(ctx context.Context, principal Principal) (rooms []calendar.Room, err error) {
	if err = s.ready(principal); err != nil {
		return nil, err
	}

	logger := s.loggerWith(ctx, "RefreshRooms", "domain", principal.Domain, "principal", principal.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to refresh rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rooms refreshed", "rooms", len(rooms))
	}()

	rooms, err = s.rooms.Refresh(ctx, principal.Domain)
	err = mapCatalogError(err)
	return
}

func (s *RoomService) ready(principal Principal) error {
	if s == nil || s.rooms == nil {
		return fmt.Errorf("RoomService is not configured")
	}
	if strings.TrimSpace(principal.Domain) == "" {
		vErr := &ValidationError{}
		vErr.add("domain", "domain is required")
		return vErr
	}
	return nil
}
