package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Cefalo/quick-meet/internal/logging"
)

// Refresher periodically reloads the room lists of a fixed set of domains so
// lookups rarely pay for a directory call.
type Refresher struct {
	catalog *Catalog
	domains []string
	timeout time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
	base    context.Context
}

// NewRefresher validates the standard five-field cron expression and prepares
// a refresher. Call Start to begin scheduling.
func NewRefresher(catalog *Catalog, spec string, domains []string, logger *slog.Logger) (*Refresher, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		catalog: catalog,
		domains: append([]string(nil), domains...),
		timeout: time.Minute,
		logger:  logger.With("component", "catalog_refresher"),
		cron:    cron.New(),
		base:    context.Background(),
	}
	if _, err := r.cron.AddFunc(spec, func() { r.RefreshAll(r.base) }); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Refresher) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "catalog_refresher")
	}
	return r.logger
}

// Start runs the schedule in the background. Scheduled refreshes inherit ctx
// and stop early once it is done.
func (r *Refresher) Start(ctx context.Context) {
	r.base = ctx
	r.loggerFor(ctx).InfoContext(ctx, "catalog refresher started", "domains", r.domains)
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or for
// ctx to end.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	r.loggerFor(ctx).InfoContext(ctx, "catalog refresher stopped")
}

// RefreshAll refreshes every configured domain. Failures are logged and do
// not stop the remaining domains.
func (r *Refresher) RefreshAll(ctx context.Context) int {
	logger := r.loggerFor(ctx)
	refreshed := 0
	for _, domain := range r.domains {
		refreshCtx, cancel := context.WithTimeout(ctx, r.timeout)
		rooms, err := r.catalog.Refresh(refreshCtx, domain)
		cancel()
		if err != nil {
			logger.ErrorContext(ctx, "scheduled catalog refresh failed", "domain", domain, "error", err)
			continue
		}
		refreshed++
		logger.DebugContext(ctx, "scheduled catalog refresh complete", "domain", domain, "rooms", len(rooms))
	}
	return refreshed
}
