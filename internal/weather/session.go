package weather

import (
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/meteo-station-dashboard/internal/geo"
	"github.com/i474232898/meteo-station-dashboard/internal/stations"
)

// Session is the state of one user interaction. It is a value: every With
// method returns a modified copy and leaves the receiver untouched.
type Session struct {
	ID           uuid.UUID              `json:"id"`
	CreatedAt    time.Time              `json:"created_at"`
	Municipality *geo.MunicipalityMatch `json:"municipality,omitempty"`
	Station      *stations.Station      `json:"station,omitempty"`

	// ReferenceTime is the UTC validity time of the last live observation,
	// the anchor for past-year lookups.
	ReferenceTime time.Time `json:"reference_time,omitzero"`
}

func NewSession(now time.Time) Session {
	return Session{ID: uuid.New(), CreatedAt: now.UTC()}
}

// WithMunicipality selects a municipality and forgets the station derived
// from a previous one.
func (s Session) WithMunicipality(m geo.MunicipalityMatch) Session {
	s.Municipality = &m
	s.Station = nil
	s.ReferenceTime = time.Time{}
	return s
}

func (s Session) WithStation(st stations.Station) Session {
	s.Station = &st
	return s
}

func (s Session) WithReferenceTime(t time.Time) Session {
	s.ReferenceTime = t.UTC()
	return s
}
