package weather

import (
	"time"
	_ "time/tzdata"

	"github.com/i474232898/meteo-station-dashboard/internal/common"
)

// Unit conversions. Each accepts a nil operand and returns nil for it.

// KelvinToCelsius uses an offset of 273, not 273.15, to match the values
// historically shown by the dashboard.
func KelvinToCelsius(k *float64) *float64 {
	return apply(k, func(v float64) float64 { return common.Round(v-273, 1) })
}

func MetersPerSecondToKmh(ms *float64) *float64 {
	return apply(ms, func(v float64) float64 { return common.Round(v*3.6, 0) })
}

func MetersToKilometers(m *float64) *float64 {
	return apply(m, func(v float64) float64 { return common.Round(v/1000, 1) })
}

func MetersToCentimeters(m *float64) *float64 {
	return apply(m, func(v float64) float64 { return common.Round(v*100, 0) })
}

func PascalToHectopascal(pa *float64) *float64 {
	return apply(pa, func(v float64) float64 { return common.Round(v/100, 0) })
}

func RoundHectopascal(hpa *float64) *float64 {
	return apply(hpa, func(v float64) float64 { return common.Round(v, 0) })
}

// Identity copies a nullable value so records never alias upstream payloads.
func Identity(v *float64) *float64 {
	return apply(v, func(v float64) float64 { return v })
}

func roundDelta(d *float64, decimals int) *float64 {
	return apply(d, func(v float64) float64 { return common.Round(v, decimals) })
}

func apply(v *float64, f func(float64) float64) *float64 {
	if v == nil {
		return nil
	}
	return common.Float(f(*v))
}

// Direction of a timezone conversion.
type Direction int

const (
	UTCToLocal Direction = iota
	LocalToUTC
)

// Local is the display timezone of every station in the table.
var Local = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// unreachable: tzdata is embedded
		panic(err)
	}
	return loc
}

// ConvertTZ moves t between UTC and Europe/Paris. LocalToUTC reads the wall
// clock of t as Paris local time whatever its location, so a naive local
// timestamp converts correctly.
func ConvertTZ(t time.Time, dir Direction) time.Time {
	switch dir {
	case LocalToUTC:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), Local).UTC()
	default:
		return t.UTC().In(Local)
	}
}

func convertTimePtr(t *time.Time, dir Direction) *time.Time {
	if t == nil {
		return nil
	}
	v := ConvertTZ(*t, dir)
	return &v
}
