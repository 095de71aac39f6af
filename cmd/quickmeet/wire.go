package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Cefalo/quick-meet/internal/application"
	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/calendar/google"
	"github.com/Cefalo/quick-meet/internal/calendar/local"
	"github.com/Cefalo/quick-meet/internal/catalog"
	"github.com/Cefalo/quick-meet/internal/config"
	httptransport "github.com/Cefalo/quick-meet/internal/http"
	"github.com/Cefalo/quick-meet/internal/persistence/sqlite"
)

// service holds the wired process and everything that needs closing.
type service struct {
	storage   *sqlite.Storage
	catalog   *catalog.Catalog
	refresher *catalog.Refresher
	handler   http.Handler
	logger    *slog.Logger
}

func wire(ctx context.Context, cfg config.Config, logger *slog.Logger) (*service, error) {
	svc := &service{logger: logger}

	if cfg.NeedsSQLite() {
		storage, err := openStorage(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		svc.storage = storage
	}

	provider, err := newProvider(ctx, cfg, svc.storage, logger)
	if err != nil {
		svc.Close(ctx)
		return nil, err
	}

	var store catalog.Store
	switch cfg.CatalogStore {
	case config.CatalogStoreSQLite:
		store = catalog.NewPersistentStore(svc.storage.Catalog, time.Now)
	default:
		store = catalog.NewMemoryStore(0, time.Now)
	}
	svc.catalog = catalog.New(provider, store, catalog.Options{TTL: cfg.CatalogTTL, Logger: logger})

	if cfg.CatalogRefresh != "" {
		svc.refresher, err = catalog.NewRefresher(svc.catalog, cfg.CatalogRefresh, cfg.CatalogDomains, logger)
		if err != nil {
			svc.Close(ctx)
			return nil, err
		}
	}

	validator := application.NewRescheduleValidator(provider, logger)
	availability := application.NewAvailabilityService(svc.catalog, provider, validator, logger)
	bookings := application.NewBookingService(svc.catalog, provider, validator, time.Now, logger)
	rooms := application.NewRoomService(svc.catalog, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Availability: httptransport.NewAvailabilityHandler(availability, application.NewQueryCoordinator(), logger),
		Rooms:        httptransport.NewRoomHandler(rooms, logger),
		Events:       httptransport.NewEventHandler(bookings, logger),
		Identity:     httptransport.RequireIdentity(logger),
		Health:       svc.health,
	})
	svc.handler = httptransport.RequestLogger(logger)(router)

	return svc, nil
}

func newProvider(ctx context.Context, cfg config.Config, storage *sqlite.Storage, logger *slog.Logger) (calendar.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		provider, err := google.New(ctx, google.Config{
			CredentialsFile: cfg.Google.CredentialsFile,
			Subject:         cfg.Google.Subject,
			Customer:        cfg.Google.Customer,
			CalendarID:      cfg.Google.CalendarID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create google provider: %w", err)
		}
		return provider, nil
	case config.ProviderLocal:
		if storage == nil {
			return nil, errors.New("local provider requires SQLite storage")
		}
		if cfg.RoomSeedFile != "" {
			if err := seedRooms(ctx, storage, cfg.RoomSeedFile, logger); err != nil {
				return nil, err
			}
		}
		return local.New(storage.Rooms, storage.Events, local.Options{Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Provider)
	}
}

func (s *service) health(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Ping(ctx)
}

// Close stops the refresher and releases storage.
func (s *service) Close(ctx context.Context) {
	if s.refresher != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		s.refresher.Stop(stopCtx)
		cancel()
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			s.logger.Error("failed to close storage", "error", err)
		}
	}
}
