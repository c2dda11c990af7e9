package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/meteo-station-dashboard/internal/cache"
	"github.com/i474232898/meteo-station-dashboard/internal/geo"
	"github.com/i474232898/meteo-station-dashboard/internal/meteofrance"
	"github.com/i474232898/meteo-station-dashboard/internal/stations"
)

// Cache function names. Archive entries are flushed daily by the scheduler.
const (
	FnSearchMunicipality = "SearchMunicipality"
	FnResolveStation     = "ResolveStation"
	FnObservation        = "Observation"
	FnPastHour           = "PastHour"
	FnDailyHistory       = "DailyHistory"
)

// ArchiveFuncs are the cache functions backed by climatological orders.
var ArchiveFuncs = []string{FnPastHour, FnDailyHistory}

const (
	MinYearsBack = 1
	MaxYearsBack = 50
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrNoStation      = errors.New("station table is empty")
	ErrYearsBack      = fmt.Errorf("years back must be between %d and %d", MinYearsBack, MaxYearsBack)
)

type ServiceConfig struct {
	NearestK          int
	OrderPollAttempts int
	OrderPollInterval time.Duration
	CutoffHour        int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service composes geocoding, station lookup and the observation API for
// one interaction at a time. It keeps no per-user state; callers carry a
// Session.
type Service struct {
	geocoder Geocoder
	stations StationLocator
	source   ObservationSource
	cache    *cache.Cache
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService creates a new Service. c may be nil to disable memoization.
func NewService(g Geocoder, st StationLocator, src ObservationSource, c *cache.Cache, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.NearestK <= 0 {
		cfg.NearestK = stations.DefaultK
	}
	if cfg.OrderPollAttempts <= 0 {
		cfg.OrderPollAttempts = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		geocoder: g,
		stations: st,
		source:   src,
		cache:    c,
		cfg:      cfg,
		logger:   logger.With("component", "weather-service"),
	}
}

// SearchMunicipality proxies the geocoder. Empty answers are not cached so
// that an upstream outage is not remembered.
func (s *Service) SearchMunicipality(ctx context.Context, query string) []geo.MunicipalityMatch {
	key := cache.Key(FnSearchMunicipality, strings.ToLower(strings.TrimSpace(query)))
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if matches, ok := v.([]geo.MunicipalityMatch); ok {
				return matches
			}
		}
	}

	matches := s.geocoder.Search(ctx, query)
	if len(matches) > 0 && s.cache != nil {
		s.cache.Set(key, matches)
	}
	return matches
}

// ResolveStation finds the stations nearest to the selected municipality and
// the address of the closest one, and returns sess updated with both.
func (s *Service) ResolveStation(ctx context.Context, sess Session, m geo.MunicipalityMatch) (StationReport, Session, error) {
	lat, lon := m.Coordinates.Latitude, m.Coordinates.Longitude
	key := cache.Key(FnResolveStation, lat, lon, s.cfg.NearestK)

	var report StationReport
	if v, ok := s.cacheGet(key); ok {
		report, _ = v.(StationReport)
	}
	if len(report.Nearest) == 0 {
		nearest := s.stations.Nearest(lat, lon, s.cfg.NearestK)
		if len(nearest) == 0 {
			return StationReport{}, sess, ErrNoStation
		}
		closest := nearest[0]
		report = StationReport{
			Nearest: nearest,
			Address: s.geocoder.Reverse(ctx, closest.Latitude, closest.Longitude),
		}
		if report.Address != geo.UnknownAddress && s.cache != nil {
			s.cache.Set(key, report)
		}
		s.logger.Debug("station resolved", "municipality", m.Label, "station", closest.ID, "distance_km", closest.DistanceKm)
	}

	report.Municipality = m
	return report, sess.WithMunicipality(m).WithStation(report.Nearest[0].Station), nil
}

// CurrentConditions returns the latest observation of stationID together
// with the observation one hour earlier and their deltas.
func (s *Service) CurrentConditions(ctx context.Context, stationID string) (ConditionsReport, error) {
	if _, ok := s.stations.Get(stationID); !ok {
		return ConditionsReport{}, fmt.Errorf("%w %s", ErrUnknownStation, stationID)
	}

	latest, err := s.source.GetObservation(ctx, stationID, time.Time{})
	if err != nil {
		return ConditionsReport{}, err
	}
	report := ConditionsReport{
		StationID: stationID,
		Current:   NormalizeLive(latest),
	}
	if latest.ValidityTime == nil {
		s.logger.Warn("latest observation has no validity time", "station", stationID)
		report.Delta = Deltas(report.Current, report.Previous)
		return report, nil
	}

	prevAt := latest.ValidityTime.UTC().Add(-time.Hour)
	key := cache.Key(FnObservation, stationID, prevAt)
	previous, err := cache.GetOrLoad(s.cache, key, func() (*meteofrance.LiveObservation, error) {
		return s.source.GetObservation(ctx, stationID, prevAt)
	})
	if err != nil {
		s.logger.Warn("previous observation unavailable", "station", stationID, "at", prevAt, "error", err)
	} else {
		report.Previous = NormalizeLive(previous)
	}

	report.Delta = Deltas(report.Current, report.Previous)
	return report, nil
}

// PastHour returns the archived hour ref-yearsBack and the hour before it.
// A zero ref means the current hour.
func (s *Service) PastHour(ctx context.Context, stationID string, ref time.Time, yearsBack int) (PastReport, error) {
	if yearsBack < MinYearsBack || yearsBack > MaxYearsBack {
		return PastReport{}, ErrYearsBack
	}
	st, ok := s.stations.Get(stationID)
	if !ok {
		return PastReport{}, fmt.Errorf("%w %s", ErrUnknownStation, stationID)
	}

	now := s.cfg.Now().UTC()
	if ref.IsZero() {
		ref = now
	}
	target := ref.UTC().Truncate(time.Hour).AddDate(-yearsBack, 0, 0)

	start, end, err := ArchiveWindow(now, target.Add(-time.Hour), target, st.OpeningDate, s.cfg.CutoffHour)
	if err != nil {
		return PastReport{}, err
	}

	key := cache.Key(FnPastHour, stationID, start, end)
	pair, err := cache.GetOrLoad(s.cache, key, func() (HourlyPair, error) {
		csv, err := s.order(ctx, stationID, start, end, meteofrance.Hourly)
		if err != nil {
			return HourlyPair{}, err
		}
		return ParseHourlyArchive(strings.NewReader(csv))
	})
	if err != nil {
		return PastReport{}, err
	}

	return PastReport{
		StationID: stationID,
		YearsBack: yearsBack,
		Start:     start,
		End:       end,
		Pair:      pair,
		Delta:     Deltas(pair.Current, pair.Previous),
	}, nil
}

// DailyHistory returns the daily climatology of stationID over [start, end].
func (s *Service) DailyHistory(ctx context.Context, stationID string, start, end time.Time) (DailyTable, error) {
	st, ok := s.stations.Get(stationID)
	if !ok {
		return DailyTable{}, fmt.Errorf("%w %s", ErrUnknownStation, stationID)
	}

	start, end, err := ArchiveWindow(s.cfg.Now(), start, end, st.OpeningDate, s.cfg.CutoffHour)
	if err != nil {
		return DailyTable{}, err
	}

	key := cache.Key(FnDailyHistory, stationID, start, end)
	return cache.GetOrLoad(s.cache, key, func() (DailyTable, error) {
		csv, err := s.order(ctx, stationID, start, end, meteofrance.Daily)
		if err != nil {
			return DailyTable{}, err
		}
		table, err := ParseDailyArchive(strings.NewReader(csv))
		if err != nil {
			return DailyTable{}, err
		}
		if table.StationID == "" {
			table.StationID = stationID
		}
		return table, nil
	})
}

// order places an archive order and polls for its file.
func (s *Service) order(ctx context.Context, stationID string, start, end time.Time, g meteofrance.Granularity) (string, error) {
	orderID, err := s.source.OrderArchive(ctx, stationID, start, end, g)
	if err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		csv, err := s.source.FetchOrderResult(ctx, orderID)
		if err == nil {
			return csv, nil
		}
		if !errors.Is(err, meteofrance.ErrOrderPending) || attempt >= s.cfg.OrderPollAttempts {
			return "", fmt.Errorf("order %s: %w", orderID, err)
		}

		s.logger.Debug("order pending", "order", orderID, "attempt", attempt)
		timer := time.NewTimer(s.cfg.OrderPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// FlushArchives drops every memoized archive result.
func (s *Service) FlushArchives() int {
	if s.cache == nil {
		return 0
	}
	removed := 0
	for _, fn := range ArchiveFuncs {
		removed += s.cache.InvalidateFunc(fn)
	}
	return removed
}

// FlushCache drops every memoized result.
func (s *Service) FlushCache() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *Service) cacheGet(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}
