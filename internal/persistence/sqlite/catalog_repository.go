package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Cefalo/quick-meet/internal/persistence"
)

// CatalogRepository implements persistence.CatalogRepository using SQLite.
type CatalogRepository struct {
	pool *ConnectionPool
}

// NewCatalogRepository creates a catalog repository over pool.
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

var _ persistence.CatalogRepository = (*CatalogRepository)(nil)

// SaveCatalog replaces the snapshot stored for entry.Domain.
func (r *CatalogRepository) SaveCatalog(ctx context.Context, entry persistence.CatalogEntry) error {
	if entry.Domain == "" {
		return fmt.Errorf("%w: catalog domain is required", persistence.ErrConstraintViolation)
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_entries WHERE domain = ?`, entry.Domain); err != nil {
			return mapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_entries (domain, refreshed_at, expires_at) VALUES (?, ?, ?)`,
			entry.Domain, toMillis(entry.RefreshedAt), toMillis(entry.ExpiresAt),
		); err != nil {
			return mapError(err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO catalog_rooms (domain, position, id, email, name, floor, seats, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return mapError(err)
		}
		defer stmt.Close()

		for i, room := range entry.Rooms {
			if _, err := stmt.ExecContext(ctx,
				entry.Domain, i, room.ID, room.Email, room.Name, room.Floor, room.Seats, room.Description,
			); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// LoadCatalog returns the snapshot for domain with rooms in saved order.
func (r *CatalogRepository) LoadCatalog(ctx context.Context, domain string) (persistence.CatalogEntry, error) {
	entry := persistence.CatalogEntry{Domain: domain}

	var refreshedAt, expiresAt int64
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT refreshed_at, expires_at FROM catalog_entries WHERE domain = ?`, domain,
	).Scan(&refreshedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.CatalogEntry{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.CatalogEntry{}, mapError(err)
	}
	entry.RefreshedAt = fromMillis(refreshedAt)
	entry.ExpiresAt = fromMillis(expiresAt)

	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, email, name, floor, seats, description
		FROM catalog_rooms
		WHERE domain = ?
		ORDER BY position
	`, domain)
	if err != nil {
		return persistence.CatalogEntry{}, mapError(err)
	}
	defer rows.Close()

	entry.Rooms = make([]persistence.Room, 0)
	for rows.Next() {
		room := persistence.Room{Domain: domain}
		if err := rows.Scan(&room.ID, &room.Email, &room.Name, &room.Floor, &room.Seats, &room.Description); err != nil {
			return persistence.CatalogEntry{}, mapError(err)
		}
		entry.Rooms = append(entry.Rooms, room)
	}
	if err := rows.Err(); err != nil {
		return persistence.CatalogEntry{}, mapError(err)
	}
	return entry, nil
}

// DeleteCatalog removes the snapshot for domain. Deleting a missing snapshot
// is not an error.
func (r *CatalogRepository) DeleteCatalog(ctx context.Context, domain string) error {
	_, err := r.pool.DB().ExecContext(ctx, `DELETE FROM catalog_entries WHERE domain = ?`, domain)
	return mapError(err)
}
