package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config keeps runtime settings for the service.
type Config struct {
	Port         string
	DBType       string // "postgres" or "sqlite"
	DatabaseURL  string // postgres connection URL
	DatabasePath string // sqlite file path
	SummaryHour  int    // hour of day for the due-summary job
	Debug        bool
}

// Load reads configuration from a .env file (if present) and the
// environment, with sane defaults.
func Load() (Config, error) {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := Config{
		Port:         getenv("PORT", "8080"),
		DBType:       strings.ToLower(getenv("DB_TYPE", "sqlite")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabasePath: getenv("DATABASE_PATH", "data/medplan.db"),
		SummaryHour:  9,
		Debug:        os.Getenv("DEBUG") == "true",
	}

	if raw := strings.TrimSpace(os.Getenv("SUMMARY_HOUR")); raw != "" {
		hour, err := strconv.Atoi(raw)
		if err != nil || hour < 0 || hour > 23 {
			return cfg, errors.Errorf("SUMMARY_HOUR must be 0-23, got %q", raw)
		}
		cfg.SummaryHour = hour
	}

	switch cfg.DBType {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_TYPE=postgres")
		}
	default:
		return cfg, errors.Errorf("unsupported DB_TYPE %q", cfg.DBType)
	}

	return cfg, nil
}

// DSN returns the connection string for the selected driver.
func (c Config) DSN() string {
	if c.DBType == "postgres" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
