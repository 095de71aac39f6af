// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_room_catalog.sql") and are read from any fs.FS, usually an embedded
// directory. Applied versions and their checksums are tracked in the
// schema_migrations table; a file whose content changed after it was applied
// is reported instead of silently skipped.
package migration
