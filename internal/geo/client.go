package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/meteo-station-dashboard/internal/transport"
)

// API Docs: https://adresse.data.gouv.fr/outils/api-doc/adresse
// Sample requests:
// - https://api-adresse.data.gouv.fr/search/?q=lyon&type=municipality&limit=5&autocomplete=1
// - https://api-adresse.data.gouv.fr/reverse/?lon=4.85&lat=45.75&type=street&limit=1
const (
	defaultBaseURL = "https://api-adresse.data.gouv.fr"

	// MaxMatches is the number of municipalities requested and returned.
	MaxMatches = 5
)

// Client resolves municipalities and reverse-geocodes station coordinates.
// It holds no state besides its HTTP plumbing.
type Client struct {
	baseURL string
	httpCfg transport.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: transport.HTTPClientConfig{
			Client:  httpClient,
			Backoff: transport.DefaultBackoff,
		},
		circuit: transport.NewBreaker("adresse"),
		logger:  logger.With("component", "adresse-client"),
	}
}

// Search returns up to MaxMatches municipalities for query. An empty query
// or any upstream failure yields an empty slice.
func (c *Client) Search(ctx context.Context, query string) []MunicipalityMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MunicipalityMatch{}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "municipality")
	q.Set("limit", strconv.Itoa(MaxMatches))
	q.Set("autocomplete", "1")

	fc, err := c.get(ctx, "/search/", q)
	if err != nil {
		c.logger.Warn("municipality search unavailable", "query", query, "error", err)
		return []MunicipalityMatch{}
	}

	matches := make([]MunicipalityMatch, 0, MaxMatches)
	for _, f := range fc.Features {
		if len(matches) == MaxMatches {
			break
		}
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		matches = append(matches, MunicipalityMatch{
			Label:   f.Properties.Label,
			Context: f.Properties.Context,
			Coordinates: Coordinates{
				Latitude:  f.Geometry.Coordinates[1],
				Longitude: f.Geometry.Coordinates[0],
			},
		})
	}
	return matches
}

// Reverse finds the city and context of the nearest street. When nothing
// matches at full precision the latitude is truncated one decimal digit at a
// time, down to integer degrees, before giving up with UnknownAddress.
func (c *Client) Reverse(ctx context.Context, latitude, longitude float64) Address {
	lon := strconv.FormatFloat(longitude, 'f', -1, 64)

	for _, lat := range LatitudePrecisions(latitude) {
		if ctx.Err() != nil {
			break
		}

		q := url.Values{}
		q.Set("lon", lon)
		q.Set("lat", lat)
		q.Set("type", "street")
		q.Set("limit", "1")

		fc, err := c.get(ctx, "/reverse/", q)
		if err != nil {
			c.logger.Warn("reverse geocoding step failed", "lat", lat, "lon", lon, "error", err)
			continue
		}
		if len(fc.Features) == 0 {
			c.logger.Debug("no street match, degrading precision", "lat", lat, "lon", lon)
			continue
		}

		props := fc.Features[0].Properties
		return Address{City: props.City, Context: props.Context}
	}

	c.logger.Info("reverse geocoding exhausted", "latitude", latitude, "longitude", longitude)
	return UnknownAddress
}

// LatitudePrecisions lists the latitude strings tried by Reverse: the
// shortest exact decimal form first, then one digit less each step, ending
// with the integer part. The list is never longer than the number of
// decimals plus one, which bounds the retry loop.
func LatitudePrecisions(latitude float64) []string {
	full := strconv.FormatFloat(latitude, 'f', -1, 64)
	intPart, frac, _ := strings.Cut(full, ".")

	out := make([]string, 0, len(frac)+1)
	for digits := len(frac); digits > 0; digits-- {
		out = append(out, intPart+"."+frac[:digits])
	}
	return append(out, intPart)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*featureCollection, error) {
	u := c.baseURL + path + "?" + q.Encode()

	resp, err := transport.Do(ctx, c.httpCfg, c.circuit, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &fc, nil
}
