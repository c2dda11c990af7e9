package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/meteo-station-dashboard/internal/logging"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// HTTPTimeout bounds every outbound call (geocoding, token, observation, archive).
	HTTPTimeout time.Duration

	AdresseBaseURL string

	// Météo-France portal. ApplicationID is the base64 client id/secret pair
	// sent as Basic credentials to the token endpoint.
	TokenURL      string
	ObsBaseURL    string
	ClimBaseURL   string
	ApplicationID string

	StationsCSV string
	ModelPath   string

	CacheTTL time.Duration

	// Archive orders are asynchronous; the result is polled this many times.
	OrderPollAttempts int
	OrderPollInterval time.Duration

	// ArchiveCutoffHour is the UTC hour before which today's archive is not populated.
	ArchiveCutoffHour int

	// Session retention for the HTTP API.
	SessionMaxEntries int
	SessionMaxAge     time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}

	cfg.AdresseBaseURL = getenvDefault("ADRESSE_BASE_URL", "https://api-adresse.data.gouv.fr")
	cfg.TokenURL = getenvDefault("METEOFRANCE_TOKEN_URL", "https://portail-api.meteofrance.fr/token")
	cfg.ObsBaseURL = getenvDefault("METEOFRANCE_OBS_BASE_URL", "https://public-api.meteofrance.fr/public/DPObs/v1")
	cfg.ClimBaseURL = getenvDefault("METEOFRANCE_CLIM_BASE_URL", "https://public-api.meteofrance.fr/public/DPClim/v1")
	cfg.ApplicationID = os.Getenv("METEOFRANCE_APPLICATION_ID")

	cfg.StationsCSV = getenvDefault("STATIONS_CSV", "./datasets/weather-stations-list.csv")
	cfg.ModelPath = getenvDefault("MODEL_PATH", "./modele/logistic-regression.json")

	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.OrderPollAttempts, err = getenvInt("ORDER_POLL_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.OrderPollInterval, err = getenvDuration("ORDER_POLL_INTERVAL", "2s"); err != nil {
		return nil, err
	}
	if cfg.ArchiveCutoffHour, err = getenvInt("ARCHIVE_CUTOFF_HOUR", 5); err != nil {
		return nil, err
	}
	if cfg.ArchiveCutoffHour < 0 || cfg.ArchiveCutoffHour > 23 {
		return nil, fmt.Errorf("invalid ARCHIVE_CUTOFF_HOUR %d (allowed: 0-23)", cfg.ArchiveCutoffHour)
	}

	if cfg.SessionMaxEntries, err = getenvInt("SESSION_MAX_ENTRIES", 10000); err != nil {
		return nil, err
	}
	if cfg.SessionMaxAge, err = getenvDuration("SESSION_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr returns the listen address in the format ":port".
func (c *AppConfig) Addr() string {
	return ":" + c.Port
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
