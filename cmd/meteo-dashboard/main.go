package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/meteo-station-dashboard/internal/config"
	"github.com/i474232898/meteo-station-dashboard/internal/geo"
	"github.com/i474232898/meteo-station-dashboard/internal/logging"
	"github.com/i474232898/meteo-station-dashboard/internal/meteofrance"
	"github.com/i474232898/meteo-station-dashboard/internal/stations"
)

const appName = "meteo-dashboard"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Météo-France station dashboard and banknote detection backend",
	Long: `meteo-dashboard resolves French municipalities to their nearest
observation station and serves live and archived readings from the
Météo-France public APIs, alongside a banknote authenticity classifier.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// env is the process-wide plumbing shared by every subcommand.
type env struct {
	cfg        *config.AppConfig
	logger     *slog.Logger
	httpClient *http.Client
}

var app env

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app = env{
		cfg:    cfg,
		logger: logging.New(cfg.AppEnv, cfg.LogLevel, appName),
		// Shared HTTP client for every outbound call.
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	slog.SetDefault(app.logger)
	return nil
}

func (e env) geocoder() *geo.Client {
	return geo.NewClient(e.httpClient, e.cfg.AdresseBaseURL, e.logger)
}

func (e env) meteoFrance() *meteofrance.Client {
	return meteofrance.NewClient(e.httpClient, meteofrance.Options{
		TokenURL:      e.cfg.TokenURL,
		ObsBaseURL:    e.cfg.ObsBaseURL,
		ClimBaseURL:   e.cfg.ClimBaseURL,
		ApplicationID: e.cfg.ApplicationID,
	}, e.logger)
}

func (e env) stations() (*stations.Index, error) {
	idx, err := stations.LoadFile(e.cfg.StationsCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to load station table: %w", err)
	}
	e.logger.Info("station table loaded", "path", e.cfg.StationsCSV, "stations", idx.Len())
	return idx, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
