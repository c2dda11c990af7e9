package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/meteo-station-dashboard/internal/api/http"
	"github.com/i474232898/meteo-station-dashboard/internal/cache"
	"github.com/i474232898/meteo-station-dashboard/internal/detection"
	"github.com/i474232898/meteo-station-dashboard/internal/scheduler"
	"github.com/i474232898/meteo-station-dashboard/internal/store"
	"github.com/i474232898/meteo-station-dashboard/internal/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Load the station table and classifier, schedule the daily archive cache flush and serve the JSON API.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log := app.cfg, app.logger

	idx, err := app.stations()
	if err != nil {
		return err
	}

	service := weather.NewService(app.geocoder(), idx, app.meteoFrance(), cache.New(cfg.CacheTTL), weather.ServiceConfig{
		OrderPollAttempts: cfg.OrderPollAttempts,
		OrderPollInterval: cfg.OrderPollInterval,
		CutoffHour:        cfg.ArchiveCutoffHour,
	}, log)

	// Archives for the previous day appear at the cutoff; drop stale answers then.
	sched := scheduler.New(service, cfg.ArchiveCutoffHour, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server := httpapi.NewApp(appName, httpapi.Deps{
		Service:  service,
		Stations: idx,
		Sessions: store.NewMemoryStore(cfg.SessionMaxEntries, cfg.SessionMaxAge),
		Detector: detection.NewDetector(cfg.ModelPath, log),
		Logger:   log,
	})

	go func() {
		log.Info("http server listening", "addr", cfg.Addr())
		if err := server.Listen(cfg.Addr()); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return nil
}
