package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/Cefalo/quick-meet/internal/calendar"
)

func TestMemoryStore(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	t.Run("load returns a copy", func(t *testing.T) {
		store := NewMemoryStore(0, clock)
		rooms := []calendar.Room{{Email: "cedar@resource.example.com", Seats: 8}}
		if err := store.Save(ctx, "example.com", Entry{Rooms: rooms, ExpiresAt: now.Add(time.Hour)}); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
		rooms[0].Seats = 99

		entry, ok, err := store.Load(ctx, "example.com")
		if err != nil || !ok {
			t.Fatalf("expected entry, ok=%v err=%v", ok, err)
		}
		if entry.Rooms[0].Seats != 8 {
			t.Fatalf("store aliased caller slice")
		}
	})

	t.Run("save prunes expired entries", func(t *testing.T) {
		store := NewMemoryStore(0, clock)
		_ = store.Save(ctx, "old.example.com", Entry{ExpiresAt: now.Add(-time.Minute)})
		_ = store.Save(ctx, "new.example.com", Entry{ExpiresAt: now.Add(time.Hour)})
		if _, ok, _ := store.Load(ctx, "old.example.com"); ok {
			t.Fatalf("expected expired entry to be pruned")
		}
	})

	t.Run("evicts when full", func(t *testing.T) {
		store := NewMemoryStore(2, clock)
		for _, domain := range []string{"a", "b", "c"} {
			_ = store.Save(ctx, domain, Entry{ExpiresAt: now.Add(time.Hour)})
		}
		if store.Len() != 2 {
			t.Fatalf("expected 2 entries, got %d", store.Len())
		}
		if _, ok, _ := store.Load(ctx, "c"); !ok {
			t.Fatalf("expected newest entry to be kept")
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := NewMemoryStore(0, clock)
		_ = store.Save(ctx, "example.com", Entry{ExpiresAt: now.Add(time.Hour)})
		_ = store.Delete(ctx, "example.com")
		if _, ok, _ := store.Load(ctx, "example.com"); ok {
			t.Fatalf("expected entry to be deleted")
		}
	})
}
