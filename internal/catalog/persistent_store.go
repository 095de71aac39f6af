package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/persistence"
)

// PersistentStore keeps catalog entries in a CatalogRepository so snapshots
// survive restarts.
type PersistentStore struct {
	repo persistence.CatalogRepository
	now  func() time.Time
}

// NewPersistentStore wraps repo. now stamps the refresh time of saved entries.
func NewPersistentStore(repo persistence.CatalogRepository, now func() time.Time) *PersistentStore {
	if now == nil {
		now = time.Now
	}
	return &PersistentStore{repo: repo, now: now}
}

var _ Store = (*PersistentStore)(nil)

func (s *PersistentStore) Load(ctx context.Context, domain string) (Entry, bool, error) {
	stored, err := s.repo.LoadCatalog(ctx, domain)
	if errors.Is(err, persistence.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load catalog %s: %w", domain, err)
	}

	rooms := make([]calendar.Room, len(stored.Rooms))
	for i, room := range stored.Rooms {
		rooms[i] = calendar.Room{
			ID:          room.ID,
			Email:       room.Email,
			Name:        room.Name,
			Domain:      room.Domain,
			Floor:       room.Floor,
			Seats:       room.Seats,
			Description: room.Description,
		}
	}
	return Entry{Rooms: rooms, ExpiresAt: stored.ExpiresAt}, true, nil
}

func (s *PersistentStore) Save(ctx context.Context, domain string, entry Entry) error {
	rooms := make([]persistence.Room, len(entry.Rooms))
	for i, room := range entry.Rooms {
		rooms[i] = persistence.Room{
			ID:          room.ID,
			Email:       room.Email,
			Name:        room.Name,
			Domain:      domain,
			Floor:       room.Floor,
			Seats:       room.Seats,
			Description: room.Description,
		}
	}
	err := s.repo.SaveCatalog(ctx, persistence.CatalogEntry{
		Domain:      domain,
		Rooms:       rooms,
		RefreshedAt: s.now(),
		ExpiresAt:   entry.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("save catalog %s: %w", domain, err)
	}
	return nil
}

func (s *PersistentStore) Delete(ctx context.Context, domain string) error {
	if err := s.repo.DeleteCatalog(ctx, domain); err != nil {
		return fmt.Errorf("delete catalog %s: %w", domain, err)
	}
	return nil
}
