package stations

import (
	"math"
	"strings"
	"testing"
	"time"
)

const stationTable = `Id_station;Id_omm;Nom_usuel;Latitude;Longitude;Altitude;Date_ouverture;Pack
75114001;07150;PARIS-MONTSOURIS;48.821667;2.337833;75;1872-01-01;RADOME
13054001;07650;MARIGNANE;43.437667;5.216;9;1920-01-01;RADOME
69029001;07480;LYON-BRON;45,721333;4,949167;198;1920-01-01;RADOME
33281001;07510;BORDEAUX-MERIGNAC;44.830667;-0.691333;47;1920-01-01;RADOME
67124001;07190;STRASBOURG-ENTZHEIM;48.5495;7.640333;150;01/01/1949;RADOME
06088001;07690;NICE;43.648833;7.209;2;1942-01-01;RADOME
`

func loadTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Load(strings.NewReader(stationTable))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return idx
}

func TestLoad(t *testing.T) {
	idx := loadTestIndex(t)
	if idx.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", idx.Len())
	}

	lyon, ok := idx.Get("69029001")
	if !ok {
		t.Fatal("LYON-BRON not indexed")
	}
	if lyon.Name != "Lyon-Bron" {
		t.Errorf("Name = %q, want title-cased Lyon-Bron", lyon.Name)
	}
	if lyon.Latitude != 45.721333 || lyon.Longitude != 4.949167 {
		t.Errorf("decimal comma not parsed: %+v", lyon)
	}

	strasbourg, _ := idx.Get("67124001")
	if !strasbourg.OpeningDate.Equal(time.Date(1949, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("OpeningDate = %v", strasbourg.OpeningDate)
	}

	if _, ok := idx.Get("00000000"); ok {
		t.Error("unknown id must not resolve")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"missing column", "Id_station;Nom_usuel;Latitude;Longitude;Altitude\n1;A;1;1;1\n", "date_ouverture"},
		{"bad latitude", "id_station;nom_usuel;latitude;longitude;altitude;date_ouverture\n1;A;north;1;1;2000-01-01\n", "line 2: latitude"},
		{"bad date", "id_station;nom_usuel;latitude;longitude;altitude;date_ouverture\n1;A;1;1;1;yesterday\n", "date_ouverture"},
		{"no rows", "id_station;nom_usuel;latitude;longitude;altitude;date_ouverture\n", "no rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestIndex_Nearest(t *testing.T) {
	idx := loadTestIndex(t)

	// Versailles
	got := idx.Nearest(48.8049, 2.1204, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "75114001" {
		t.Errorf("nearest = %s, want Paris-Montsouris", got[0].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Errorf("results not ascending at %d: %v", i, got)
		}
	}
}

func TestIndex_NearestReturnsMinKSize(t *testing.T) {
	idx := loadTestIndex(t)
	points := [][2]float64{{43.3, 5.4}, {50.6, 3.06}, {-21.1, 55.5}, {0, 0}, {48.8, 2.3}}

	for _, p := range points {
		for _, k := range []int{1, 5, 6, 50} {
			got := idx.Nearest(p[0], p[1], k)
			want := k
			if want > idx.Len() {
				want = idx.Len()
			}
			if len(got) != want {
				t.Errorf("Nearest(%v, k=%d) len = %d, want %d", p, k, len(got), want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].DistanceKm < got[i-1].DistanceKm {
					t.Errorf("Nearest(%v, k=%d) not sorted: %v", p, k, got)
				}
			}
		}
	}

	if got := idx.Nearest(48.8, 2.3, 0); len(got) != DefaultK {
		t.Errorf("k=0 len = %d, want %d", len(got), DefaultK)
	}
}

func TestIndex_NearestTiesKeepTableOrder(t *testing.T) {
	idx := New([]Station{
		{ID: "b", Latitude: 45, Longitude: 1},
		{ID: "a", Latitude: 45, Longitude: 1},
		{ID: "c", Latitude: 45, Longitude: 1},
	})
	got := idx.Nearest(46, 1, 3)
	if got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Errorf("tie order = %s,%s,%s, want b,a,c", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestDistanceKm(t *testing.T) {
	// Paris-Montsouris to Marignane is roughly 640 km.
	d := DistanceKm(48.821667, 2.337833, 43.437667, 5.216)
	if math.Abs(d-639) > 10 {
		t.Errorf("DistanceKm = %.1f, want about 639 km", d)
	}
	if DistanceKm(45, 5, 45, 5) != 0 {
		t.Error("distance to self must be zero")
	}

	// One degree of latitude at the equator is 110.574 km on WGS84, not the
	// spherical 111.195 km.
	if d := DistanceKm(0, 0, 1, 0); math.Abs(d-110.574) > 0.01 {
		t.Errorf("1 degree latitude at equator = %.3f km, want 110.574", d)
	}
}

func TestLoadFile_SampleDataset(t *testing.T) {
	idx, err := LoadFile("../../datasets/weather-stations-list.csv")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	st, ok := idx.Get("75114001")
	if !ok || st.Name != "Paris-Montsouris" {
		t.Errorf("Get(75114001) = %+v, %v", st, ok)
	}
	if got := idx.Nearest(48.8049, 2.1204, 1); got[0].ID != "78621001" {
		t.Errorf("nearest to Versailles = %s, want Trappes", got[0].ID)
	}
}
