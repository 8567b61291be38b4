// Package kite provides a client for the Zerodha Kite Connect REST API:
// the instrument catalog dump and live market quotes.
package kite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/optick/optionpulse/internal/models"
)

// ErrUnavailable marks transport-level failures: network errors, timeouts,
// auth rejections, and upstream 5xx. Callers treat it as "no data this
// cycle" rather than a fault of their own.
var ErrUnavailable = errors.New("kite: upstream unavailable")

// ErrMalformed marks responses that arrived but could not be decoded.
var ErrMalformed = errors.New("kite: malformed response")

// ClientConfig holds retry and transport tuning for the API client.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client provides access to the Kite Connect API.
type Client struct {
	baseURL    string
	apiKey     string
	token      TokenSource
	httpClient *http.Client
	config     ClientConfig
}

// NewClient creates a Kite API client. The access token is resolved per
// request through token, since the broker rotates it daily.
func NewClient(baseURL, apiKey string, token TokenSource, timeout time.Duration, config ClientConfig) *Client {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelayBase <= 0 {
		config.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config: config,
	}
}

// FetchInstruments retrieves the full instrument dump (CSV) and decodes it.
// The dump covers every tradable contract; callers filter it down.
func (c *Client) FetchInstruments(ctx context.Context) ([]models.Instrument, error) {
	body, err := c.get(ctx, c.baseURL+"/instruments")
	if err != nil {
		return nil, err
	}

	var instruments []models.Instrument
	if err := gocsv.UnmarshalBytes(body, &instruments); err != nil {
		return nil, fmt.Errorf("%w: failed to decode instrument dump: %v", ErrMalformed, err)
	}
	return instruments, nil
}

// quoteEnvelope is the standard Kite response wrapper.
type quoteEnvelope struct {
	Status string                  `json:"status"`
	Data   map[string]models.Quote `json:"data"`
}

// FetchQuotes retrieves live quotes for up to 500 instruments, keyed by the
// identifiers passed in (instrument tokens or exchange:tradingsymbol).
// Instruments missing from the response are simply absent from the map.
func (c *Client) FetchQuotes(ctx context.Context, ids []string) (map[string]models.Quote, error) {
	u, err := url.Parse(c.baseURL + "/quote")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	for _, id := range ids {
		q.Add("i", id)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var envelope quoteEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to decode quotes: %v", ErrMalformed, err)
	}
	if envelope.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", ErrUnavailable, envelope.Status)
	}
	return envelope.Data, nil
}

type ltpEnvelope struct {
	Status string `json:"status"`
	Data   map[string]struct {
		LastPrice float64 `json:"last_price"`
	} `json:"data"`
}

// FetchLTP retrieves the last traded price for a single instrument, used
// for the underlying index spot.
func (c *Client) FetchLTP(ctx context.Context, id string) (float64, error) {
	u, err := url.Parse(c.baseURL + "/quote/ltp")
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("i", id)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return 0, err
	}

	var envelope ltpEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("%w: failed to decode ltp: %v", ErrMalformed, err)
	}
	entry, ok := envelope.Data[id]
	if !ok {
		return 0, fmt.Errorf("%w: no ltp entry for %s", ErrMalformed, id)
	}
	return entry.LastPrice, nil
}

// get performs an authenticated GET with linear-backoff retry on transport
// errors and 5xx responses.
func (c *Client) get(ctx context.Context, urlStr string) ([]byte, error) {
	accessToken, err := c.token.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: access token: %v", ErrUnavailable, err)
	}

	var lastErr error
	for i := 0; i < c.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(c.config.RetryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Kite-Version", "3")
		req.Header.Set("Authorization", "token "+c.apiKey+":"+accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %v", ErrUnavailable, lastErr)
}
