package weather

import (
	"errors"
	"time"
)

// DefaultCutoffHour is the UTC hour from which today's archive is populated.
const DefaultCutoffHour = 5

var ErrEmptyArchiveWindow = errors.New("archive window is empty after clamping")

// ArchiveWindow clamps a requested archive period to what upstream can serve.
//
// The end never passes the latest populated hour: today's cutoff once now
// has reached it, otherwise 23:00 UTC of the previous day. When clamping the
// end moves it before start, the whole window is deferred so that it keeps
// its length and ends at that limit. The start never precedes the station
// opening date.
func ArchiveWindow(now, start, end, opening time.Time, cutoffHour int) (time.Time, time.Time, error) {
	now, start, end = now.UTC(), start.UTC(), end.UTC()

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	limit := day.Add(time.Duration(cutoffHour) * time.Hour)
	if now.Before(limit) {
		limit = day.Add(-time.Hour)
	}

	if end.After(limit) {
		length := end.Sub(start)
		end = limit
		if start.After(end) {
			start = end.Add(-length)
		}
	}

	if !opening.IsZero() && start.Before(opening.UTC()) {
		start = opening.UTC()
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrEmptyArchiveWindow
	}
	return start, end, nil
}
