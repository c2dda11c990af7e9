package weather

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/meteo-station-dashboard/internal/meteofrance"
)

var (
	ErrUnexpectedRowCount = errors.New("hourly archive must contain exactly two rows")
	ErrMissingDateColumn  = errors.New("archive has no DATE column")
)

// NormalizeLive maps a DPObs observation onto the canonical record.
func NormalizeLive(obs *meteofrance.LiveObservation) ObservationRecord {
	if obs == nil {
		return ObservationRecord{}
	}
	return ObservationRecord{
		ValidityTime:      convertTimePtr(obs.ValidityTime, UTCToLocal),
		TemperatureC:      KelvinToCelsius(obs.T),
		HumidityPct:       Identity(obs.U),
		WindKmh:           MetersPerSecondToKmh(obs.Ff),
		Precipitation1hMm: Identity(obs.Rr1),
		VisibilityKm:      MetersToKilometers(obs.Vv),
		SnowCm:            MetersToCentimeters(obs.Sss),
		SunshineMin:       Identity(obs.Insolh),
		PressureHPa:       PascalToHectopascal(obs.Pres),
	}
}

// HourlyArchiveRow is one row of a DPClim hourly order, upstream units.
type HourlyArchiveRow struct {
	Station  string
	Date     time.Time // UTC
	T        *float64  // °C
	U        *float64  // %
	FF       *float64  // m/s
	RR1      *float64  // mm
	VV       *float64  // m
	NEIGETOT *float64  // m
	INS      *float64  // min
	PSTAT    *float64  // hPa
}

// Record converts the row to canonical units.
func (r HourlyArchiveRow) Record() ObservationRecord {
	rec := ObservationRecord{
		TemperatureC:      Identity(r.T),
		HumidityPct:       Identity(r.U),
		WindKmh:           MetersPerSecondToKmh(r.FF),
		Precipitation1hMm: Identity(r.RR1),
		VisibilityKm:      MetersToKilometers(r.VV),
		SnowCm:            MetersToCentimeters(r.NEIGETOT),
		SunshineMin:       Identity(r.INS),
		PressureHPa:       RoundHectopascal(r.PSTAT),
	}
	if !r.Date.IsZero() {
		local := ConvertTZ(r.Date, UTCToLocal)
		rec.ValidityTime = &local
	}
	return rec
}

// ParseHourlyArchive reads an hourly order file. The file must hold exactly
// two data rows: the first is labeled previous and the second current,
// whatever their DATE values say.
func ParseHourlyArchive(r io.Reader) (HourlyPair, error) {
	table, err := readArchive(r)
	if err != nil {
		return HourlyPair{}, err
	}
	if len(table.rows) != 2 {
		return HourlyPair{}, fmt.Errorf("%w, got %d", ErrUnexpectedRowCount, len(table.rows))
	}

	rows := make([]HourlyArchiveRow, 2)
	for i, rec := range table.rows {
		row, err := table.hourlyRow(rec)
		if err != nil {
			return HourlyPair{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows[i] = row
	}

	return HourlyPair{
		Previous: rows[0].Record(),
		Current:  rows[1].Record(),
	}, nil
}

type dailyCode struct {
	name    string
	unit    string
	convert func(*float64) *float64
}

// dailyCodes renames known DPClim daily codes; any other code is kept verbatim.
var dailyCodes = map[string]dailyCode{
	"RR":        {"precipitation_mm", "mm", Identity},
	"TN":        {"temperature_min_c", "°C", Identity},
	"TX":        {"temperature_max_c", "°C", Identity},
	"TM":        {"temperature_mean_c", "°C", Identity},
	"UM":        {"humidity_mean_pct", "%", Identity},
	"FFM":       {"wind_mean_kmh", "km/h", MetersPerSecondToKmh},
	"FXY":       {"wind_gust_max_kmh", "km/h", MetersPerSecondToKmh},
	"FXI":       {"wind_instant_max_kmh", "km/h", MetersPerSecondToKmh},
	"INST":      {"sunshine_min", "min", Identity},
	"PMERM":     {"pressure_sea_mean_hpa", "hPa", RoundHectopascal},
	"NEIGETOTX": {"snow_max_cm", "cm", Identity},
	"NEIGETOTM": {"snow_mean_cm", "cm", Identity},
}

// DailyArchiveRow is one day of a DPClim daily order keyed by upstream code.
type DailyArchiveRow struct {
	Station string
	Date    time.Time
	Fields  map[string]*float64
}

// ParseDailyArchive reads a daily order file. Columns that are null on every
// row are dropped.
func ParseDailyArchive(r io.Reader) (DailyTable, error) {
	table, err := readArchive(r)
	if err != nil {
		return DailyTable{}, err
	}

	raw := make([]DailyArchiveRow, 0, len(table.rows))
	for i, rec := range table.rows {
		row, err := table.dailyRow(rec)
		if err != nil {
			return DailyTable{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		raw = append(raw, row)
	}

	out := DailyTable{Rows: make([]DailyRecord, len(raw))}
	if len(raw) > 0 {
		out.StationID = raw[0].Station
	}
	for i, row := range raw {
		out.Rows[i] = DailyRecord{Date: row.Date, Values: map[string]*float64{}}
	}

	for _, code := range table.valueColumns() {
		col := DailyColumn{Code: code, Name: code}
		convert := Identity
		if known, ok := dailyCodes[code]; ok {
			col.Name, col.Unit, convert = known.name, known.unit, known.convert
		}

		present := false
		for _, row := range raw {
			if row.Fields[code] != nil {
				present = true
				break
			}
		}
		if !present {
			continue
		}

		out.Columns = append(out.Columns, col)
		for i, row := range raw {
			out.Rows[i].Values[col.Name] = convert(row.Fields[code])
		}
	}
	return out, nil
}

// archiveTable is a DPClim CSV order file split into header and records.
type archiveTable struct {
	header []string
	cols   map[string]int
	rows   [][]string
}

func readArchive(r io.Reader) (*archiveTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("failed to read archive: empty file")
	}

	t := &archiveTable{cols: map[string]int{}}
	for i, h := range records[0] {
		code := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		t.header = append(t.header, code)
		t.cols[code] = i
	}
	if _, ok := t.cols["DATE"]; !ok {
		return nil, ErrMissingDateColumn
	}
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *archiveTable) cell(rec []string, code string) string {
	i, ok := t.cols[code]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *archiveTable) value(rec []string, code string) (*float64, error) {
	v, err := ParseNullableFloat(t.cell(rec, code))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}
	return v, nil
}

// valueColumns lists every column except POSTE and DATE in file order.
func (t *archiveTable) valueColumns() []string {
	cols := make([]string, 0, len(t.header))
	for _, code := range t.header {
		if code == "POSTE" || code == "DATE" || code == "" {
			continue
		}
		cols = append(cols, code)
	}
	return cols
}

func (t *archiveTable) hourlyRow(rec []string) (HourlyArchiveRow, error) {
	row := HourlyArchiveRow{Station: t.cell(rec, "POSTE")}

	if d := t.cell(rec, "DATE"); d != "" {
		date, err := time.ParseInLocation("2006010215", d, time.UTC)
		if err != nil {
			return row, fmt.Errorf("DATE: %w", err)
		}
		row.Date = date
	}

	fields := []struct {
		code string
		dst  **float64
	}{
		{"T", &row.T},
		{"U", &row.U},
		{"FF", &row.FF},
		{"RR1", &row.RR1},
		{"VV", &row.VV},
		{"NEIGETOT", &row.NEIGETOT},
		{"INS", &row.INS},
		{"PSTAT", &row.PSTAT},
	}
	for _, f := range fields {
		v, err := t.value(rec, f.code)
		if err != nil {
			return row, err
		}
		*f.dst = v
	}
	return row, nil
}

func (t *archiveTable) dailyRow(rec []string) (DailyArchiveRow, error) {
	row := DailyArchiveRow{Station: t.cell(rec, "POSTE"), Fields: map[string]*float64{}}

	date, err := time.ParseInLocation("20060102", t.cell(rec, "DATE"), time.UTC)
	if err != nil {
		return row, fmt.Errorf("DATE: %w", err)
	}
	row.Date = date

	for _, code := range t.valueColumns() {
		v, err := t.value(rec, code)
		if err != nil {
			return row, err
		}
		row.Fields[code] = v
	}
	return row, nil
}

// ParseNullableFloat parses a decimal-comma number. Empty cells and NaN
// markers are absent values.
func ParseNullableFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "mq":
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}
