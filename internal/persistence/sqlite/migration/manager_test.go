package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerRun(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"schema/001_rooms.sql":  {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);")},
		"schema/002_events.sql": {Data: []byte("CREATE TABLE events (id TEXT PRIMARY KEY);\nCREATE INDEX idx_events_id ON events(id);")},
	}

	db := openMemory(t)
	manager := NewManager(fsys, "schema", NewExecutor(db), quietLogger())

	applied, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", applied)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO events (id) VALUES ('e1')`); err != nil {
		t.Fatalf("expected events table to exist: %v", err)
	}

	applied, err = manager.Run(ctx)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no migrations on second run, got %d", applied)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != 2 || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"schema/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"schema/002_broken.sql": {Data: []byte("CREATE TABLE half (id TEXT);\nCREATE TABLE broken (;")},
	}

	db := openMemory(t)
	manager := NewManager(fsys, "schema", NewExecutor(db), quietLogger())

	applied, err := manager.Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected first migration to apply, got %d", applied)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'`).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected failed migration to roll back")
	}
}

func TestManagerDetectsChangedMigration(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	original := fstest.MapFS{"schema/001_rooms.sql": {Data: []byte("CREATE TABLE rooms (id TEXT);")}}
	if _, err := NewManager(original, "schema", NewExecutor(db), quietLogger()).Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	edited := fstest.MapFS{"schema/001_rooms.sql": {Data: []byte("CREATE TABLE rooms (id TEXT, name TEXT);")}}
	if _, err := NewManager(edited, "schema", NewExecutor(db), quietLogger()).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	if _, err := NewManager(fstest.MapFS{"schema/002_other.sql": {Data: []byte("CREATE TABLE other (id TEXT);")}}, "schema", NewExecutor(db), quietLogger()).Run(ctx); !errors.Is(err, ErrMissingMigration) {
		t.Fatalf("expected ErrMissingMigration, got %v", err)
	}
}
