package weather

import (
	"context"
	"time"

	"github.com/i474232898/meteo-station-dashboard/internal/geo"
	"github.com/i474232898/meteo-station-dashboard/internal/meteofrance"
	"github.com/i474232898/meteo-station-dashboard/internal/stations"
)

// Geocoder resolves municipalities and addresses (geo.Client).
type Geocoder interface {
	Search(ctx context.Context, query string) []geo.MunicipalityMatch
	Reverse(ctx context.Context, latitude, longitude float64) geo.Address
}

// StationLocator is the read-only station table (stations.Index).
type StationLocator interface {
	Nearest(latitude, longitude float64, k int) []stations.StationDistance
	Get(id string) (stations.Station, bool)
}

// ObservationSource is the authenticated observation and archive API (meteofrance.Client).
type ObservationSource interface {
	GetObservation(ctx context.Context, stationID string, at time.Time) (*meteofrance.LiveObservation, error)
	OrderArchive(ctx context.Context, stationID string, start, end time.Time, g meteofrance.Granularity) (string, error)
	FetchOrderResult(ctx context.Context, orderID string) (string, error)
}
