package detection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// SchemaError lists the required columns an uploaded file lacks.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "invalid file: missing column(s): " + strings.Join(e.Missing, ", ")
}

// MissingValuesError lists the columns holding at least one empty cell.
type MissingValuesError struct {
	Columns []string
}

func (e *MissingValuesError) Error() string {
	return "invalid file: missing values in column(s): " + strings.Join(e.Columns, ", ")
}

// InvalidValueError is a feature cell that is not a number.
type InvalidValueError struct {
	Row    int
	Column string
	Value  string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid file: row %d column %s: %q is not a number", e.Row, e.Column, e.Value)
}

var ErrEmptyBatch = errors.New("invalid file: no rows")

// Batch is an uploaded comma-separated file of banknote measurements.
type Batch struct {
	Columns []string
	Rows    [][]string
}

// ParseBatch reads a CSV with a header row. Columns are matched by name.
func ParseBatch(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid file: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	b := &Batch{Columns: make([]string, len(records[0]))}
	for i, h := range records[0] {
		b.Columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	b.Rows = records[1:]
	return b, nil
}

// Validate checks required columns first, then missing values. It returns a
// *SchemaError or a *MissingValuesError.
func (b *Batch) Validate() error {
	index := b.index()

	var missing []string
	for _, col := range append([]string{IDColumn}, Features...) {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &SchemaError{Missing: missing}
	}

	if len(b.Rows) == 0 {
		return ErrEmptyBatch
	}

	var incomplete []string
	for i, col := range b.Columns {
		for _, row := range b.Rows {
			if isMissing(cell(row, i)) {
				incomplete = append(incomplete, col)
				break
			}
		}
	}
	if len(incomplete) > 0 {
		return &MissingValuesError{Columns: incomplete}
	}
	return nil
}

// sample is a validated row.
type sample struct {
	id       string
	features map[string]float64
}

func (b *Batch) samples() ([]sample, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	index := b.index()

	out := make([]sample, len(b.Rows))
	for r, row := range b.Rows {
		s := sample{id: cell(row, index[IDColumn]), features: make(map[string]float64, len(Features))}
		for _, f := range Features {
			raw := cell(row, index[f])
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &InvalidValueError{Row: r + 1, Column: f, Value: raw}
			}
			s.features[f] = v
		}
		out[r] = s
	}
	return out, nil
}

func (b *Batch) index() map[string]int {
	index := make(map[string]int, len(b.Columns))
	for i, c := range b.Columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	return index
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && math.IsNaN(v) {
		return true
	}
	return false
}
