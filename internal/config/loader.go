package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Cefalo/quick-meet/internal/logging"
)

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"

	CatalogStoreMemory = "memory"
	CatalogStoreSQLite = "sqlite"
)

// Config captures environment driven configuration values for the service.
type Config struct {
	HTTPPort     int
	Provider     string
	SQLitePath   string
	CatalogStore string
	CatalogTTL   time.Duration
	// CatalogRefresh is a five-field cron expression. Empty disables
	// scheduled refreshes.
	CatalogRefresh string
	CatalogDomains []string
	RoomSeedFile   string
	LogLevel       string
	Google         GoogleConfig
}

// GoogleConfig holds the Workspace settings used when Provider is google.
type GoogleConfig struct {
	CredentialsFile string
	Subject         string
	CalendarID      string
	Customer        string
}

// NeedsSQLite reports whether any configured component stores data in SQLite.
func (c Config) NeedsSQLite() bool {
	return c.Provider == ProviderLocal || c.CatalogStore == CatalogStoreSQLite
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Missing and invalid entries are
// collected and reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     8080,
		Provider:     ProviderLocal,
		SQLitePath:   "quickmeet.db",
		CatalogStore: CatalogStoreMemory,
		CatalogTTL:   15 * 24 * time.Hour,
		LogLevel:     "info",
		Google: GoogleConfig{
			CalendarID: "primary",
			Customer:   "my_customer",
		},
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := env("QUICKMEET_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "QUICKMEET_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if provider := strings.ToLower(env("QUICKMEET_PROVIDER")); provider != "" {
		switch provider {
		case ProviderLocal, ProviderGoogle:
			cfg.Provider = provider
		default:
			invalid = append(invalid, "QUICKMEET_PROVIDER")
		}
	}

	if path := env("QUICKMEET_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	if store := strings.ToLower(env("QUICKMEET_CATALOG_STORE")); store != "" {
		switch store {
		case CatalogStoreMemory, CatalogStoreSQLite:
			cfg.CatalogStore = store
		default:
			invalid = append(invalid, "QUICKMEET_CATALOG_STORE")
		}
	}

	if ttlValue := env("QUICKMEET_CATALOG_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "QUICKMEET_CATALOG_TTL")
		} else {
			cfg.CatalogTTL = ttl
		}
	}

	if domains := env("QUICKMEET_CATALOG_DOMAINS"); domains != "" {
		for _, domain := range strings.Split(domains, ",") {
			if domain = strings.ToLower(strings.TrimSpace(domain)); domain != "" {
				cfg.CatalogDomains = append(cfg.CatalogDomains, domain)
			}
		}
	}

	if spec := env("QUICKMEET_CATALOG_REFRESH"); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			invalid = append(invalid, "QUICKMEET_CATALOG_REFRESH")
		} else {
			cfg.CatalogRefresh = spec
		}
		if len(cfg.CatalogDomains) == 0 {
			missing = append(missing, "QUICKMEET_CATALOG_DOMAINS")
		}
	}

	cfg.RoomSeedFile = env("QUICKMEET_ROOM_SEED_FILE")

	if level := env("QUICKMEET_LOG_LEVEL"); level != "" {
		if _, err := logging.ParseLevel(level); err != nil {
			invalid = append(invalid, "QUICKMEET_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	cfg.Google.CredentialsFile = env("QUICKMEET_GOOGLE_CREDENTIALS_FILE")
	cfg.Google.Subject = env("QUICKMEET_GOOGLE_SUBJECT")
	if id := env("QUICKMEET_GOOGLE_CALENDAR_ID"); id != "" {
		cfg.Google.CalendarID = id
	}
	if customer := env("QUICKMEET_GOOGLE_CUSTOMER"); customer != "" {
		cfg.Google.Customer = customer
	}
	if cfg.Provider == ProviderGoogle {
		if cfg.Google.CredentialsFile == "" {
			missing = append(missing, "QUICKMEET_GOOGLE_CREDENTIALS_FILE")
		}
		if cfg.Google.Subject == "" {
			missing = append(missing, "QUICKMEET_GOOGLE_SUBJECT")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
