package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager applies pending migrations from a file system source.
type Manager struct {
	source   fs.FS
	dir      string
	executor *Executor
	logger   *slog.Logger
}

// NewManager reads migrations from dir inside source.
func NewManager(source fs.FS, dir string, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:   source,
		dir:      dir,
		executor: executor,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order and returns how many
// were applied. It stops at the first failure.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)
	for i, migration := range status.Pending {
		if err := m.executor.Apply(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"path", migration.Path,
				"error", err,
			)
			return i, err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
		)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", len(status.Pending),
		"duration", time.Since(started),
	)
	return len(status.Pending), nil
}

// Status compares the source with schema_migrations. Applied migrations must
// still exist in the source with an unchanged checksum.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := Scan(m.source, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[migration.Version] = migration
	}

	status := Status{Applied: applied}
	done := make(map[int]bool, len(applied))
	for _, record := range applied {
		done[record.Version] = true
		if record.Version > status.CurrentVersion {
			status.CurrentVersion = record.Version
		}
		migration, ok := byVersion[record.Version]
		if !ok {
			return Status{}, newMigrationError(record.Version, m.dir, "verify applied",
				ErrMissingMigration)
		}
		if record.Checksum != migration.Checksum {
			return Status{}, newMigrationError(record.Version, migration.Path, "verify applied",
				fmt.Errorf("%w: recorded %s", ErrChecksumMismatch, shortChecksum(record.Checksum)))
		}
	}

	for _, migration := range available {
		if !done[migration.Version] {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
