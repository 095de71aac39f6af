package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

// Entry is a cached room snapshot for one domain.
type Entry struct {
	Rooms     []calendar.Room
	ExpiresAt time.Time
}

// Store persists catalog entries. Implementations must copy rooms on the way
// in and out so cached snapshots cannot be mutated by callers.
type Store interface {
	Load(ctx context.Context, domain string) (Entry, bool, error)
	Save(ctx context.Context, domain string, entry Entry) error
	Delete(ctx context.Context, domain string) error
}

// MemoryStore keeps catalog entries in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	entries    map[string]Entry
}

// NewMemoryStore constructs an in-memory store. Expired entries are pruned
// whenever a new entry is saved; once maxEntries is reached an arbitrary
// entry is evicted.
func NewMemoryStore(maxEntries int, now func() time.Time) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]Entry),
	}
}

func (s *MemoryStore) Load(_ context.Context, domain string) (Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[domain]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{Rooms: calendar.CloneRooms(entry.Rooms), ExpiresAt: entry.ExpiresAt}, true, nil
}

func (s *MemoryStore) Save(_ context.Context, domain string, entry Entry) error {
	cloned := Entry{Rooms: calendar.CloneRooms(entry.Rooms), ExpiresAt: entry.ExpiresAt}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupLocked()
	if _, exists := s.entries[domain]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOneLocked()
	}
	s.entries[domain] = cloned
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, domain string) error {
	s.mu.Lock()
	delete(s.entries, domain)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) cleanupLocked() {
	now := s.now()
	for domain, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, domain)
		}
	}
}

func (s *MemoryStore) evictOneLocked() {
	for domain := range s.entries {
		delete(s.entries, domain)
		return
	}
}
