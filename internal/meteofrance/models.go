package meteofrance

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthExpired is returned when the replayed request is still rejected
	// for an invalid token.
	ErrAuthExpired = errors.New("meteofrance: access token rejected after refresh")

	ErrNoToken       = errors.New("meteofrance: token endpoint returned no access_token")
	ErrNoObservation = errors.New("meteofrance: no observation for station")

	// ErrOrderPending means the archive order is accepted but its file is not produced yet.
	ErrOrderPending = errors.New("meteofrance: order not ready")
)

// APIError is any non-success answer that is not handled by the token logic.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meteofrance: status %d: %s", e.StatusCode, e.Body)
}

// Granularity selects the climatological archive product.
type Granularity string

const (
	Hourly Granularity = "horaire"
	Daily  Granularity = "quotidienne"
)

// LiveObservation is one element of the DPObs station/horaire JSON array.
// Units are upstream's: kelvin, m/s, meters, pascals.
type LiveObservation struct {
	GeoIDInsee    string     `json:"geo_id_insee"`
	ReferenceTime *time.Time `json:"reference_time"`
	ValidityTime  *time.Time `json:"validity_time"`

	T      *float64 `json:"t"`
	Td     *float64 `json:"td"`
	U      *float64 `json:"u"`
	Dd     *float64 `json:"dd"`
	Ff     *float64 `json:"ff"`
	Fxi    *float64 `json:"fxi"`
	Rr1    *float64 `json:"rr1"`
	Vv     *float64 `json:"vv"`
	Sss    *float64 `json:"sss"`
	Insolh *float64 `json:"insolh"`
	Pres   *float64 `json:"pres"`
	Pmer   *float64 `json:"pmer"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// gatewayError is the JSON body of a 401 from the API gateway.
type gatewayError struct {
	Code        any    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

type orderResponse struct {
	Envelope struct {
		Return string `json:"return"`
	} `json:"elaboreProduitAvecDemandeResponse"`
}
