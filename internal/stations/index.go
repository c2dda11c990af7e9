package stations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/geodesic"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultK is the number of neighbours returned when the caller asks for none.
const DefaultK = 5

// Station is one row of the reference table.
type Station struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	OpeningDate time.Time `json:"opening_date"`
}

// StationDistance pairs a station with its geodesic distance to a query point.
type StationDistance struct {
	Station
	DistanceKm float64 `json:"distance_km"`
}

var ErrEmptyTable = errors.New("station table has no rows")

// Index is the immutable in-memory station table. It is safe for concurrent
// reads because nothing mutates it after Load returns.
type Index struct {
	stations []Station
	byID     map[string]int
}

// required header names, matched case-insensitively
const (
	colID      = "id_station"
	colName    = "nom_usuel"
	colLat     = "latitude"
	colLon     = "longitude"
	colAlt     = "altitude"
	colOpening = "date_ouverture"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05", "20060102"}

// LoadFile reads the semicolon-delimited reference table at path.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open station table: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses a semicolon-delimited station table with a header row.
func Load(r io.Reader) (*Index, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read station header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range []string{colID, colName, colLat, colLon, colAlt, colOpening} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("station table is missing column %q", name)
		}
	}

	title := cases.Title(language.French)
	idx := &Index{byID: make(map[string]int)}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		st := Station{
			ID:   field(colID),
			Name: title.String(field(colName)),
		}
		if st.ID == "" {
			return nil, fmt.Errorf("line %d: empty %s", line, colID)
		}
		if st.Latitude, err = parseDecimal(field(colLat)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colLat, err)
		}
		if st.Longitude, err = parseDecimal(field(colLon)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colLon, err)
		}
		if st.Altitude, err = parseDecimal(field(colAlt)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colAlt, err)
		}
		if st.OpeningDate, err = parseDate(field(colOpening)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colOpening, err)
		}

		idx.byID[st.ID] = len(idx.stations)
		idx.stations = append(idx.stations, st)
	}

	if len(idx.stations) == 0 {
		return nil, ErrEmptyTable
	}
	return idx, nil
}

// New builds an index from already parsed stations, keeping their order.
func New(stations []Station) *Index {
	idx := &Index{
		stations: make([]Station, len(stations)),
		byID:     make(map[string]int, len(stations)),
	}
	copy(idx.stations, stations)
	for i, st := range idx.stations {
		idx.byID[st.ID] = i
	}
	return idx
}

// Nearest returns the k stations closest to (lat, lon) by WGS84 geodesic
// distance, ascending. Equal distances keep table order.
func (idx *Index) Nearest(lat, lon float64, k int) []StationDistance {
	if k <= 0 {
		k = DefaultK
	}

	all := make([]StationDistance, len(idx.stations))
	for i, st := range idx.stations {
		all[i] = StationDistance{
			Station:    st,
			DistanceKm: DistanceKm(lat, lon, st.Latitude, st.Longitude),
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].DistanceKm < all[j].DistanceKm
	})

	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// Get returns the station with the given id.
func (idx *Index) Get(id string) (Station, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Station{}, false
	}
	return idx.stations[i], true
}

// All returns a copy of the table in its original order.
func (idx *Index) All() []Station {
	result := make([]Station, len(idx.stations))
	copy(result, idx.stations)
	return result
}

// Len returns the number of stations.
func (idx *Index) Len() int {
	return len(idx.stations)
}

// DistanceKm is the ellipsoidal (WGS84) shortest-path distance in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	var meters float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &meters, nil, nil)
	return meters / 1000
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
