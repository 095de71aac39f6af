package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scan reads every .sql file directly under dir in fsys and returns them in
// version order.
func Scan(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, newMigrationError(0, dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		filePath := path.Join(dir, entry.Name())
		migration, err := parseFile(fsys, filePath)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[migration.Version]; ok {
			return nil, newMigrationError(migration.Version, filePath, "check duplicates",
				fmt.Errorf("%w: also used by %s", ErrDuplicateVersion, existing))
		}
		seen[migration.Version] = filePath
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseFile(fsys fs.FS, filePath string) (Migration, error) {
	matches := migrationFilePattern.FindStringSubmatch(path.Base(filePath))
	if matches == nil {
		return Migration{}, newMigrationError(0, filePath, "validate filename",
			fmt.Errorf("%w: expected {version}_{description}.sql", ErrInvalidMigrationFile))
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil || version <= 0 {
		return Migration{}, newMigrationError(0, filePath, "parse version",
			fmt.Errorf("%w: version must be a positive number", ErrInvalidMigrationFile))
	}

	content, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return Migration{}, newMigrationError(version, filePath, "read file", err)
	}
	body := string(content)
	if len(splitStatements(body)) == 0 {
		return Migration{}, newMigrationError(version, filePath, "parse SQL",
			fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
	}

	description := descriptionFromComments(body)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	return Migration{
		Version:     version,
		Name:        matches[2],
		Description: description,
		SQL:         body,
		Path:        filePath,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

// descriptionFromComments returns the text of a leading "-- Description:" line.
func descriptionFromComments(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// splitStatements splits on semicolons and drops comment-only lines. It does
// not understand semicolons inside string literals or trigger bodies.
func splitStatements(content string) []string {
	var statements []string
	for _, raw := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
