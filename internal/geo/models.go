package geo

// Coordinates are always (latitude, longitude) inside this module.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MunicipalityMatch is one search hit, in upstream relevance order.
type MunicipalityMatch struct {
	Label       string      `json:"label"`
	Context     string      `json:"context"`
	Coordinates Coordinates `json:"coordinates"`
}

// Address is the street-level reverse geocoding answer reduced to what the
// dashboard shows.
type Address struct {
	City    string `json:"city"`
	Context string `json:"context"`
}

// UnknownAddress is returned when reverse geocoding exhausts every precision.
var UnknownAddress = Address{City: "-", Context: "-"}

// featureCollection is the GeoJSON envelope returned by both /search and /reverse.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		// GeoJSON order: [lon, lat]
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Label   string `json:"label"`
		Context string `json:"context"`
		City    string `json:"city"`
	} `json:"properties"`
}
