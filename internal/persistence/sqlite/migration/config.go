package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig holds connection settings for a SQLite database.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:".
	Path              string
	BusyTimeout       time.Duration
	EnableForeignKeys bool
	// JournalMode is one of DELETE, TRUNCATE, PERSIST, MEMORY, WAL or OFF.
	JournalMode string
	// Synchronous is one of OFF, NORMAL, FULL or EXTRA.
	Synchronous string
	// TxLock is the BEGIN mode used by the driver: deferred, immediate or
	// exclusive. Immediate makes read-then-write transactions serialize
	// instead of failing with SQLITE_BUSY on lock upgrade.
	TxLock          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLiteConfig returns settings suited to a long running server.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		TxLock:            "immediate",
		MaxOpenConns:      8,
		MaxIdleConns:      4,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemorySQLiteConfig returns settings for a private in-memory database. A
// single connection is used because every :memory: connection is its own
// database.
func InMemorySQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:              ":memory:",
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		TxLock:            "immediate",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

// Validate reports configuration values SQLite would reject.
func (c SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("sqlite path cannot be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative")
	}
	switch c.JournalMode {
	case "", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	switch c.TxLock {
	case "", "deferred", "immediate", "exclusive":
	default:
		return fmt.Errorf("invalid transaction lock mode: %s", c.TxLock)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connection pool settings cannot be negative")
	}
	return nil
}

// DSN renders the driver connection string. Pragmas travel in the DSN so the
// driver applies them to every pooled connection, not just the first.
func (c SQLiteConfig) DSN() string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	}
	if c.TxLock != "" {
		params.Set("_txlock", c.TxLock)
	}
	return c.Path + "?" + params.Encode()
}

// Open validates the configuration, creates the database directory when
// needed and returns a pinged connection pool.
func Open(config SQLiteConfig) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}

	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("open SQLite database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping SQLite database: %w", err)
	}
	return db, nil
}
