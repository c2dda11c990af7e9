package meteofrance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"

	"github.com/i474232898/meteo-station-dashboard/internal/common"
	"github.com/i474232898/meteo-station-dashboard/internal/transport"
)

// API Docs: https://portail-api.meteofrance.fr/web/fr/faq (client credentials flow)
const (
	DefaultTokenURL    = "https://portail-api.meteofrance.fr/token"
	DefaultObsBaseURL  = "https://public-api.meteofrance.fr/public/DPObs/v1"
	DefaultClimBaseURL = "https://public-api.meteofrance.fr/public/DPClim/v1"
)

// invalidTokenMarkers identify a gateway 401 caused by an expired or revoked token.
var invalidTokenMarkers = []string{"Invalid JWT token"}

type Options struct {
	TokenURL      string
	ObsBaseURL    string
	ClimBaseURL   string
	ApplicationID string
}

// Client talks to the Météo-France public API. The access token is obtained
// lazily on the first request and replaced only when the gateway rejects it;
// a rejected request is replayed exactly once. Concurrent requests on the
// same Client share the token. Separate Clients share nothing.
type Client struct {
	opts    Options
	httpCfg transport.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu    sync.Mutex
	token string
}

func NewClient(httpClient *http.Client, opts Options, logger *slog.Logger) *Client {
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.ObsBaseURL == "" {
		opts.ObsBaseURL = DefaultObsBaseURL
	}
	if opts.ClimBaseURL == "" {
		opts.ClimBaseURL = DefaultClimBaseURL
	}
	opts.ObsBaseURL = strings.TrimRight(opts.ObsBaseURL, "/")
	opts.ClimBaseURL = strings.TrimRight(opts.ClimBaseURL, "/")

	return &Client{
		opts: opts,
		httpCfg: transport.HTTPClientConfig{
			Client:  httpClient,
			Backoff: transport.DefaultBackoff,
		},
		circuit: transport.NewBreaker("meteofrance"),
		logger:  logger.With("component", "meteofrance-client"),
	}
}

// get sends an authenticated GET. The caller owns the returned body.
func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, u, token)
	if err != nil {
		return nil, err
	}
	expired, resp := tokenRejected(resp)
	if !expired {
		return resp, nil
	}

	c.logger.Info("access token rejected, refreshing", "url", u)
	token, err = c.refresh(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, u, token)
	if err != nil {
		return nil, err
	}
	if expired, resp = tokenRejected(resp); expired {
		_ = resp.Body.Close()
		return nil, ErrAuthExpired
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, u, token string) (*http.Response, error) {
	return transport.Do(ctx, c.httpCfg, c.circuit, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

// tokenRejected reports whether resp is the gateway's invalid token answer.
// When it is not, the body is restored so the caller can still read it.
func tokenRejected(resp *http.Response) (bool, *http.Response) {
	if resp.StatusCode != http.StatusUnauthorized ||
		!strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return false, resp
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return false, resp
	}

	var ge gatewayError
	if err := json.Unmarshal(body, &ge); err != nil {
		return false, resp
	}
	if common.HasAny(ge.Description, invalidTokenMarkers...) || common.HasAny(ge.Message, invalidTokenMarkers...) {
		return true, resp
	}
	return false, resp
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	return c.acquireLocked(ctx)
}

// refresh replaces stale unless another request already did.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.token != stale {
		return c.token, nil
	}
	c.token = ""
	return c.acquireLocked(ctx)
}

func (c *Client) acquireLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	encoded := form.Encode()

	resp, err := transport.Do(ctx, c.httpCfg, c.circuit, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Basic "+c.opts.ApplicationID)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to obtain token: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to obtain token: %w", readAPIError(resp))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", ErrNoToken
	}

	c.token = tr.AccessToken
	c.logTokenExpiry(tr.AccessToken)
	return c.token, nil
}

// logTokenExpiry is diagnostic only; expiry never triggers a refresh.
func (c *Client) logTokenExpiry(token string) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		c.logger.Debug("access token acquired", "jwt", false)
		return
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		c.logger.Debug("access token acquired", "jwt", true)
		return
	}
	c.logger.Debug("access token acquired", "jwt", true, "expires_at", exp.Time)
}

func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
