package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor applies migrations and tracks them in schema_migrations.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor returns an executor bound to db.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations if it does not exist.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const stmt = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	return nil
}

// Apply runs every statement of migration and records it, all in one
// transaction.
func (e *Executor) Apply(ctx context.Context, migration Migration) (err error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return newMigrationError(migration.Version, migration.Path, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(migration.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = newMigrationError(migration.Version, migration.Path,
				fmt.Sprintf("execute statement %d", i+1), fmt.Errorf("%w: %v", ErrMigrationFailed, execErr))
			return err
		}
	}

	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		migration.Version, e.now().UTC().UnixMilli(), migration.Checksum, elapsed.Milliseconds(),
	); execErr != nil {
		err = newMigrationError(migration.Version, migration.Path, "record migration", execErr)
		return err
	}

	if err = tx.Commit(); err != nil {
		return newMigrationError(migration.Version, migration.Path, "commit transaction", err)
	}
	return nil
}

// Applied lists recorded migrations in version order.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt int64
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &record.Checksum, &elapsedMs); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		record.AppliedAt = time.UnixMilli(appliedAt).UTC()
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, nil
}
