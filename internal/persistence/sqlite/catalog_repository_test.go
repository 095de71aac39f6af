package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Cefalo/quick-meet/internal/persistence"
	"github.com/Cefalo/quick-meet/internal/testfixtures"
)

func TestCatalogRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := testfixtures.NewSQLiteHarness(t).Catalog

	refreshed := testfixtures.ReferenceTime()
	entry := persistence.CatalogEntry{
		Domain:      "example.com",
		RefreshedAt: refreshed,
		ExpiresAt:   refreshed.Add(15 * 24 * time.Hour),
		Rooms: []persistence.Room{
			{ID: "r2", Email: "oasis@example.com", Name: "Oasis", Floor: "F2", Seats: 7},
			{ID: "r1", Email: "cedar@example.com", Name: "Cedar", Floor: "F1", Seats: 8, Description: "whiteboard"},
		},
	}
	if err := repo.SaveCatalog(ctx, entry); err != nil {
		t.Fatalf("SaveCatalog returned error: %v", err)
	}

	loaded, err := repo.LoadCatalog(ctx, "example.com")
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if !loaded.ExpiresAt.Equal(entry.ExpiresAt) || !loaded.RefreshedAt.Equal(entry.RefreshedAt) {
		t.Fatalf("unexpected timestamps: %+v", loaded)
	}
	if len(loaded.Rooms) != 2 || loaded.Rooms[0].Name != "Oasis" || loaded.Rooms[1].Description != "whiteboard" {
		t.Fatalf("rooms not loaded in saved order: %+v", loaded.Rooms)
	}
	if loaded.Rooms[0].Domain != "example.com" {
		t.Fatalf("expected room domain to be filled, got %q", loaded.Rooms[0].Domain)
	}
}

func TestCatalogRepositorySaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := testfixtures.NewSQLiteHarness(t).Catalog
	now := testfixtures.ReferenceTime()

	first := persistence.CatalogEntry{
		Domain:    "example.com",
		ExpiresAt: now.Add(time.Hour),
		Rooms: []persistence.Room{
			{ID: "r1", Email: "cedar@example.com", Name: "Cedar", Seats: 8},
			{ID: "r2", Email: "oasis@example.com", Name: "Oasis", Seats: 7},
		},
	}
	second := persistence.CatalogEntry{
		Domain:    "example.com",
		ExpiresAt: now.Add(2 * time.Hour),
		Rooms:     []persistence.Room{{ID: "r3", Email: "zen@example.com", Name: "Zen", Seats: 10}},
	}
	for _, entry := range []persistence.CatalogEntry{first, second} {
		if err := repo.SaveCatalog(ctx, entry); err != nil {
			t.Fatalf("SaveCatalog returned error: %v", err)
		}
	}

	loaded, err := repo.LoadCatalog(ctx, "example.com")
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if len(loaded.Rooms) != 1 || loaded.Rooms[0].Name != "Zen" {
		t.Fatalf("expected only the second snapshot, got %+v", loaded.Rooms)
	}
}

func TestCatalogRepositoryMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := testfixtures.NewSQLiteHarness(t).Catalog

	if _, err := repo.LoadCatalog(ctx, "nowhere.test"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entry := persistence.CatalogEntry{Domain: "example.com", Rooms: []persistence.Room{}}
	if err := repo.SaveCatalog(ctx, entry); err != nil {
		t.Fatalf("SaveCatalog returned error: %v", err)
	}
	loaded, err := repo.LoadCatalog(ctx, "example.com")
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if loaded.Rooms == nil || len(loaded.Rooms) != 0 {
		t.Fatalf("expected empty non-nil rooms, got %#v", loaded.Rooms)
	}

	if err := repo.DeleteCatalog(ctx, "example.com"); err != nil {
		t.Fatalf("DeleteCatalog returned error: %v", err)
	}
	if _, err := repo.LoadCatalog(ctx, "example.com"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteCatalog(ctx, "example.com"); err != nil {
		t.Fatalf("deleting a missing catalog should succeed, got %v", err)
	}
}

func TestCatalogRepositoryRequiresDomain(t *testing.T) {
	repo := testfixtures.NewSQLiteHarness(t).Catalog
	err := repo.SaveCatalog(context.Background(), persistence.CatalogEntry{})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}
