package meteofrance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Upstream timestamps are ISO 8601 UTC with hour precision.
const dateLayout = "2006-01-02T15:00:00Z"

// GetObservation returns the hourly observation of stationID at the hour of
// at. A zero at asks for the most recent one.
func (c *Client) GetObservation(ctx context.Context, stationID string, at time.Time) (*LiveObservation, error) {
	q := url.Values{}
	q.Set("id_station", stationID)
	if !at.IsZero() {
		q.Set("date", at.UTC().Format(dateLayout))
	}
	q.Set("format", "json")

	resp, err := c.get(ctx, c.opts.ObsBaseURL+"/station/horaire?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch observation: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var obs []LiveObservation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("failed to decode observation: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoObservation, stationID)
	}
	return &obs[0], nil
}

// ListStations returns the raw station list published by the observation API.
func (c *Client) ListStations(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.opts.ObsBaseURL+"/liste-stations")
	if err != nil {
		return "", fmt.Errorf("failed to fetch station list: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read station list: %w", err)
	}
	return string(body), nil
}

// OrderArchive places an asynchronous climatological order and returns its id.
func (c *Client) OrderArchive(ctx context.Context, stationID string, start, end time.Time, g Granularity) (string, error) {
	q := url.Values{}
	q.Set("id-station", stationID)
	q.Set("date-deb-periode", start.UTC().Format(dateLayout))
	q.Set("date-fin-periode", end.UTC().Format(dateLayout))

	resp, err := c.get(ctx, c.opts.ClimBaseURL+"/commande-station/"+string(g)+"?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("failed to order archive: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", readAPIError(resp)
	}

	var order orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return "", fmt.Errorf("failed to decode order response: %w", err)
	}
	if order.Envelope.Return == "" {
		return "", fmt.Errorf("order response carries no order id")
	}

	c.logger.Debug("archive ordered", "station", stationID, "granularity", g, "order", order.Envelope.Return)
	return order.Envelope.Return, nil
}

// FetchOrderResult downloads the CSV produced for orderID. ErrOrderPending
// means the order exists but its file is not ready yet.
func (c *Client) FetchOrderResult(ctx context.Context, orderID string) (string, error) {
	q := url.Values{}
	q.Set("id-cmde", orderID)

	resp, err := c.get(ctx, c.opts.ClimBaseURL+"/commande/fichier?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusAccepted, http.StatusNoContent:
		return "", ErrOrderPending
	default:
		return "", readAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read order %s: %w", orderID, err)
	}
	return string(body), nil
}
