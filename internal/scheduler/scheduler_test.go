package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/meteo-station-dashboard/internal/logging"
)

type countingFlusher struct {
	calls atomic.Int32
}

func (f *countingFlusher) FlushArchives() int {
	f.calls.Add(1)
	return 3
}

func TestScheduler_DailyAtCutoff(t *testing.T) {
	f := &countingFlusher{}
	s := New(f, 5, logging.Discard())
	if s.At() != "05:00" {
		t.Errorf("At() = %q", s.At())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	next := s.NextRun().UTC()
	if next.Hour() != 5 || next.Minute() != 0 {
		t.Errorf("next run = %v, want 05:00 UTC", next)
	}
	if d := time.Until(next); d <= 0 || d > 24*time.Hour {
		t.Errorf("next run in %v, want within a day", d)
	}
}

func TestScheduler_RunFlushes(t *testing.T) {
	f := &countingFlusher{}
	s := New(f, 23, logging.Discard())
	s.run()
	if f.calls.Load() != 1 {
		t.Errorf("flush calls = %d, want 1", f.calls.Load())
	}
}
