package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/Cefalo/quick-meet/internal/persistence/sqlite/migration"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const schemaDir = "schema"

// Storage bundles the SQLite-backed repositories over one connection pool.
type Storage struct {
	pool    *ConnectionPool
	logger  *slog.Logger
	Catalog *CatalogRepository
	Rooms   *RoomRepository
	Events  *EventRepository
}

// Open opens the database file at path with the default server settings.
func Open(path string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path), logger)
}

// OpenWithConfig opens a database using config.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:    pool,
		logger:  logger.With("component", "sqlite"),
		Catalog: NewCatalogRepository(pool),
		Rooms:   NewRoomRepository(pool),
		Events:  NewEventRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations that have not run yet.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(schemaFS, schemaDir, migration.NewExecutor(s.pool.DB()), s.logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// MigrationStatus reports which embedded migrations are applied.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(schemaFS, schemaDir, migration.NewExecutor(s.pool.DB()), s.logger)
	return manager.Status(ctx)
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
