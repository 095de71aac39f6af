// Package catalog caches the bookable rooms of each organisational domain.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/logging"
)

const (
	// DefaultTTL is how long a domain's room list is served from cache.
	DefaultTTL = 15 * 24 * time.Hour
	// DefaultLookupTimeout bounds a single directory lookup.
	DefaultLookupTimeout = 30 * time.Second
)

// ErrNoDirectory is returned when a refresh is needed but no directory is wired.
var ErrNoDirectory = errors.New("catalog: directory not configured")

// DirectoryError wraps a failed directory lookup.
type DirectoryError struct {
	Domain string
	Err    error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("list rooms for %s: %v", e.Domain, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// Options tune a Catalog. Zero values fall back to defaults.
type Options struct {
	TTL           time.Duration
	LookupTimeout time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Catalog serves seat-ordered room lists per domain, refreshing from the
// directory on a miss or once the cached entry has expired. Concurrent
// refreshes of the same domain are collapsed into a single directory call.
type Catalog struct {
	directory     calendar.Directory
	store         Store
	ttl           time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
	group         singleflight.Group
}

// New wires a catalog around a directory and a store. A nil store falls back
// to a MemoryStore.
func New(directory calendar.Directory, store Store, opts Options) *Catalog {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if store == nil {
		store = NewMemoryStore(0, opts.Now)
	}
	return &Catalog{
		directory:     directory,
		store:         store,
		ttl:           opts.TTL,
		lookupTimeout: opts.LookupTimeout,
		now:           opts.Now,
		logger:        opts.Logger,
	}
}

func (c *Catalog) loggerFor(ctx context.Context, operation, domain string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = c.logger
	}
	return logger.With("component", "catalog", "operation", operation, "domain", domain)
}

// GetRooms returns the domain's rooms ordered by seat count ascending. Rooms
// with equal seats keep the order the directory returned them in.
func (c *Catalog) GetRooms(ctx context.Context, domain string) ([]calendar.Room, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog is nil")
	}

	entry, ok, err := c.store.Load(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("load catalog entry: %w", err)
	}
	if ok && c.now().Before(entry.ExpiresAt) {
		return entry.Rooms, nil
	}

	rooms, err := c.refresh(ctx, domain, false)
	if err != nil {
		return nil, err
	}
	return calendar.CloneRooms(rooms), nil
}

// Refresh fetches the domain's rooms from the directory regardless of the
// cached entry's freshness.
func (c *Catalog) Refresh(ctx context.Context, domain string) ([]calendar.Room, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	rooms, err := c.refresh(ctx, domain, true)
	if err != nil {
		return nil, err
	}
	return calendar.CloneRooms(rooms), nil
}

// refresh loads the domain from the directory. Unless force is set, an entry
// saved by a flight that finished after the caller's own cache miss is
// reused instead.
//
// The flight runs detached from the caller that started it, so joined callers
// are unaffected when that caller is cancelled. Each caller still stops
// waiting as soon as its own context is done.
func (c *Catalog) refresh(ctx context.Context, domain string, force bool) ([]calendar.Room, error) {
	if c.directory == nil {
		return nil, ErrNoDirectory
	}

	results := c.group.DoChan(domain, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		return c.load(flightCtx, domain, force)
	})

	select {
	case <-ctx.Done():
		c.loggerFor(ctx, "refresh", domain).DebugContext(ctx, "stopped waiting for catalog refresh", "error", ctx.Err())
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.loggerFor(ctx, "refresh", domain).DebugContext(ctx, "joined in-flight catalog refresh")
		}
		return res.Val.([]calendar.Room), nil
	}
}

func (c *Catalog) load(ctx context.Context, domain string, force bool) ([]calendar.Room, error) {
	logger := c.loggerFor(ctx, "refresh", domain)

	if !force {
		entry, ok, err := c.store.Load(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("load catalog entry: %w", err)
		}
		if ok && c.now().Before(entry.ExpiresAt) {
			return entry.Rooms, nil
		}
	}

	fetched, err := c.directory.ListRooms(ctx, domain)
	if err != nil {
		logger.WarnContext(ctx, "room directory lookup failed", "error", err)
		return nil, &DirectoryError{Domain: domain, Err: err}
	}

	rooms := calendar.CloneRooms(fetched)
	for i := range rooms {
		rooms[i].Domain = domain
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].Seats < rooms[j].Seats
	})

	entry := Entry{Rooms: rooms, ExpiresAt: c.now().Add(c.ttl)}
	if err := c.store.Save(ctx, domain, entry); err != nil {
		return nil, fmt.Errorf("save catalog entry: %w", err)
	}
	logger.InfoContext(ctx, "room catalog refreshed", "rooms", len(rooms), "expires_at", entry.ExpiresAt)
	return rooms, nil
}

// Invalidate drops the cached entry so the next lookup refreshes.
func (c *Catalog) Invalidate(ctx context.Context, domain string) error {
	if c == nil {
		return fmt.Errorf("catalog is nil")
	}
	if err := c.store.Delete(ctx, domain); err != nil {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	c.loggerFor(ctx, "invalidate", domain).InfoContext(ctx, "room catalog invalidated")
	return nil
}

// Floors lists the distinct floors of the domain ordered by their numeric
// suffix, so "F2" sorts before "F10".
func (c *Catalog) Floors(ctx context.Context, domain string) ([]string, error) {
	rooms, err := c.GetRooms(ctx, domain)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rooms))
	floors := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if room.Floor == "" {
			continue
		}
		if _, ok := seen[room.Floor]; ok {
			continue
		}
		seen[room.Floor] = struct{}{}
		floors = append(floors, room.Floor)
	}
	SortFloors(floors)
	return floors, nil
}

// MaxSeats returns the largest seat count in the domain, or zero when it has
// no rooms.
func (c *Catalog) MaxSeats(ctx context.Context, domain string) (int, error) {
	rooms, err := c.GetRooms(ctx, domain)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, room := range rooms {
		if room.Seats > highest {
			highest = room.Seats
		}
	}
	return highest, nil
}

// SortFloors orders floor labels by trailing number. Labels without a number
// sort after numbered ones, alphabetically.
func SortFloors(floors []string) {
	sort.SliceStable(floors, func(i, j int) bool {
		ni, okI := floorNumber(floors[i])
		nj, okJ := floorNumber(floors[j])
		switch {
		case okI && okJ:
			if ni != nj {
				return ni < nj
			}
			return floors[i] < floors[j]
		case okI:
			return true
		case okJ:
			return false
		default:
			return floors[i] < floors[j]
		}
	})
}

func floorNumber(label string) (int, bool) {
	trimmed := strings.TrimSpace(label)
	i := len(trimmed)
	for i > 0 && unicode.IsDigit(rune(trimmed[i-1])) {
		i--
	}
	if i == len(trimmed) {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}
