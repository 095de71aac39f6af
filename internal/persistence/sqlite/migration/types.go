package migration

import "time"

// Migration is one versioned SQL file.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	Path        string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       int
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion int
	Applied        []AppliedMigration
	Pending        []Migration
}
