package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/Cefalo/quick-meet/internal/calendar/local"
	"github.com/Cefalo/quick-meet/internal/config"
	"github.com/Cefalo/quick-meet/internal/logging"
	"github.com/Cefalo/quick-meet/internal/persistence/sqlite"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("quickmeet failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "quickmeet",
		Usage: "Find and book free meeting rooms.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := wire(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close(context.Background())

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           svc.handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			if svc.refresher != nil {
				svc.refresher.Start(ctx)
			}

			logger.Info("quickmeet API listening", "addr", server.Addr, "provider", cfg.Provider, "catalog_store", cfg.CatalogStore)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server encountered error: %w", err)
			}
			logger.Info("quickmeet API stopped")
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded SQLite schema.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "Database file. Overrides QUICKMEET_SQLITE_PATH."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if path := c.String("db"); path != "" {
				cfg.SQLitePath = path
			}

			storage, err := openStorage(c.Context, cfg.SQLitePath, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			status, err := storage.MigrationStatus(c.Context)
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			logger.Info("database schema up to date", "path", cfg.SQLitePath, "version", status.CurrentVersion, "pending", len(status.Pending))
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Load rooms from a YAML file into the local calendar.",
		ArgsUsage: "<rooms.yaml>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "Database file. Overrides QUICKMEET_SQLITE_PATH."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if path := c.String("db"); path != "" {
				cfg.SQLitePath = path
			}
			seedPath := c.Args().First()
			if seedPath == "" {
				seedPath = cfg.RoomSeedFile
			}
			if seedPath == "" {
				return fmt.Errorf("seed file is required")
			}

			storage, err := openStorage(c.Context, cfg.SQLitePath, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			return seedRooms(c.Context, storage, seedPath, logger)
		},
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(os.Stdout, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStorage(ctx context.Context, path string, logger *slog.Logger) (*sqlite.Storage, error) {
	storage, err := sqlite.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}

func seedRooms(ctx context.Context, storage *sqlite.Storage, path string, logger *slog.Logger) error {
	seed, err := local.LoadSeedFile(path)
	if err != nil {
		return err
	}
	count, err := local.SeedRooms(ctx, storage.Rooms, seed)
	if err != nil {
		return err
	}
	logger.Info("rooms seeded", "file", path, "rooms", count)
	return nil
}
