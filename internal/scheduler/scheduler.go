package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// ArchiveFlusher drops memoized archive results (weather.Service).
type ArchiveFlusher interface {
	FlushArchives() int
}

// Scheduler flushes archive cache entries once a day, when upstream
// publishes the previous day's climatology.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	flusher    ArchiveFlusher
	cutoffHour int
	logger     *slog.Logger
}

// New creates a new Scheduler running in UTC.
func New(flusher ArchiveFlusher, cutoffHour int, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:  s,
		flusher:    flusher,
		cutoffHour: cutoffHour,
		logger:     logger.With("component", "scheduler"),
	}
}

// At returns the daily run time in gocron's HH:MM form.
func (s *Scheduler) At() string {
	return fmt.Sprintf("%02d:00", s.cutoffHour)
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.At()).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("archive cache flush scheduled", "at_utc", s.At())
	return nil
}

func (s *Scheduler) run() {
	removed := s.flusher.FlushArchives()
	s.logger.Info("archive cache flushed", "entries", removed)
}

// NextRun reports when the flush job runs next.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
