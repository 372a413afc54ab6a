// Package jquants is the client for the J-Quants market data API. It owns
// the credential exchange, the vendor wire shapes and their normalization
// into the canonical market types; no other package talks to the API.
package jquants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/httputil"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

// queryDateFormat is the YYYYMMDD form the quote endpoints accept.
const queryDateFormat = "20060102"

var (
	// ErrNoData marks a distinguishable "no data for this date/instrument"
	// response. Callers treat it as an empty result, never as a failure.
	ErrNoData = errors.New("jquants: no data")

	// ErrMissingCredential is returned when no refresh token is configured.
	ErrMissingCredential = errors.New("jquants: refresh token not configured")
)

// Client handles communication with the J-Quants API
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.JQuantsConfig

	// Token management
	idToken     string
	tokenExpiry time.Time
	tokenMu     sync.RWMutex
}

// NewClient creates a new J-Quants API client
func NewClient(cfg config.JQuantsConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
	}
}

// idTokenTTL is how long an issued ID token is trusted before re-exchange.
// The upstream token is valid for 24h; renew well before that.
const idTokenTTL = 23 * time.Hour

// getToken returns a valid ID token, exchanging the refresh token if the
// cached one is missing or expired.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.idToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.idToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	// Double-check after acquiring write lock
	if c.idToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.idToken, nil
	}

	if c.cfg.RefreshToken == "" {
		return "", ErrMissingCredential
	}

	reqURL := fmt.Sprintf("%s/token/auth_refresh?refreshtoken=%s",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.RefreshToken))

	resp, err := c.httpClient.Post(ctx, reqURL, "", nil)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d: %s",
			resp.StatusCode, apiMessage(body))
	}

	token := gjson.GetBytes(body, "idToken").String()
	if token == "" {
		return "", fmt.Errorf("token response missing idToken")
	}

	c.idToken = token
	c.tokenExpiry = time.Now().Add(idTokenTTL)

	c.logger.Info("J-Quants ID token refreshed")

	return c.idToken, nil
}

// get makes an authenticated GET request and returns the response body.
// A 404 maps to ErrNoData; other non-200 statuses are generic failures.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s", c.cfg.BaseURL, path)
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNoData, apiMessage(body))
	default:
		return nil, fmt.Errorf("API error status %d: %s", resp.StatusCode, apiMessage(body))
	}
}

// apiMessage extracts the vendor error message from a response body,
// falling back to the raw payload.
func apiMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message").String(); msg != "" {
		return msg
	}
	const maxLen = 200
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}

// decodeList unmarshals the named array field of a vendor response.
func decodeList(body []byte, field string, out interface{}) error {
	raw := gjson.GetBytes(body, field)
	if !raw.Exists() {
		return fmt.Errorf("response missing %q field", field)
	}
	if err := json.Unmarshal([]byte(raw.Raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", field, err)
	}
	return nil
}
