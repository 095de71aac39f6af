package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMigrationFile indicates a file name or body that cannot be used.
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	// ErrDuplicateVersion indicates two files share a version number.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch indicates an applied migration whose file changed.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
	// ErrMissingMigration indicates an applied version with no matching file.
	ErrMissingMigration = errors.New("applied migration missing from source")
	// ErrMigrationFailed indicates a migration could not be executed.
	ErrMigrationFailed = errors.New("migration execution failed")
)

// MigrationError adds the migration and step to an underlying error.
type MigrationError struct {
	Version   int
	Path      string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("migration %03d (%s): %s: %v", e.Version, e.Path, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration (%s): %s: %v", e.Path, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func newMigrationError(version int, path, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, Path: path, Operation: operation, Err: err}
}
