package weather

import (
	"time"

	"github.com/i474232898/meteo-station-dashboard/internal/geo"
	"github.com/i474232898/meteo-station-dashboard/internal/stations"
)

// ObservationRecord is the canonical reading shape for every upstream
// schema. A nil field means the value is absent, never zero.
type ObservationRecord struct {
	ValidityTime      *time.Time `json:"validity_time"` // Europe/Paris
	TemperatureC      *float64   `json:"temperature_c"`
	HumidityPct       *float64   `json:"humidity_pct"`
	WindKmh           *float64   `json:"wind_kmh"`
	Precipitation1hMm *float64   `json:"precipitation_1h_mm"`
	VisibilityKm      *float64   `json:"visibility_km"`
	SnowCm            *float64   `json:"snow_cm"`
	SunshineMin       *float64   `json:"sunshine_min"`
	PressureHPa       *float64   `json:"pressure_hpa"`
}

// ObservationDelta holds current minus previous per field, nil when either
// side is absent or nothing changed.
type ObservationDelta struct {
	TemperatureC      *float64 `json:"temperature_c"`
	HumidityPct       *float64 `json:"humidity_pct"`
	WindKmh           *float64 `json:"wind_kmh"`
	Precipitation1hMm *float64 `json:"precipitation_1h_mm"`
	VisibilityKm      *float64 `json:"visibility_km"`
	SnowCm            *float64 `json:"snow_cm"`
	SunshineMin       *float64 `json:"sunshine_min"`
	PressureHPa       *float64 `json:"pressure_hpa"`
}

// HourlyPair is a two-hour archive slice labeled by row position.
type HourlyPair struct {
	Previous ObservationRecord `json:"previous"`
	Current  ObservationRecord `json:"current"`
}

// ConditionsReport is the live view of a station.
type ConditionsReport struct {
	StationID string            `json:"station_id"`
	Current   ObservationRecord `json:"current"`
	Previous  ObservationRecord `json:"previous"`
	Delta     ObservationDelta  `json:"delta"`
}

// PastReport is the same hour yearsBack years ago.
type PastReport struct {
	StationID string           `json:"station_id"`
	YearsBack int              `json:"years_back"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Pair      HourlyPair       `json:"observations"`
	Delta     ObservationDelta `json:"delta"`
}

// StationReport is the answer to "which station serves this municipality".
type StationReport struct {
	Municipality geo.MunicipalityMatch      `json:"municipality"`
	Nearest      []stations.StationDistance `json:"nearest"`
	Address      geo.Address                `json:"address"`
}

// DailyColumn is a column kept in a DailyTable.
type DailyColumn struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// DailyRecord is one day of a DailyTable, keyed by DailyColumn.Name.
type DailyRecord struct {
	Date   time.Time           `json:"date"`
	Values map[string]*float64 `json:"values"`
}

// DailyTable is a daily archive with every all-null column removed.
type DailyTable struct {
	StationID string        `json:"station_id"`
	Columns   []DailyColumn `json:"columns"`
	Rows      []DailyRecord `json:"rows"`
}

// Delta computes the display delta between two nullable readings.
func Delta(current, previous *float64) *float64 {
	if current == nil || previous == nil || *current == *previous {
		return nil
	}
	d := *current - *previous
	return &d
}

// Deltas applies Delta field by field.
func Deltas(current, previous ObservationRecord) ObservationDelta {
	return ObservationDelta{
		TemperatureC:      roundDelta(Delta(current.TemperatureC, previous.TemperatureC), 1),
		HumidityPct:       roundDelta(Delta(current.HumidityPct, previous.HumidityPct), 0),
		WindKmh:           roundDelta(Delta(current.WindKmh, previous.WindKmh), 0),
		Precipitation1hMm: roundDelta(Delta(current.Precipitation1hMm, previous.Precipitation1hMm), 1),
		VisibilityKm:      roundDelta(Delta(current.VisibilityKm, previous.VisibilityKm), 1),
		SnowCm:            roundDelta(Delta(current.SnowCm, previous.SnowCm), 0),
		SunshineMin:       roundDelta(Delta(current.SunshineMin, previous.SunshineMin), 0),
		PressureHPa:       roundDelta(Delta(current.PressureHPa, previous.PressureHPa), 0),
	}
}
