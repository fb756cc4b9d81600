package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TemperaturePath is the device endpoint that reports the current reading.
const TemperaturePath = "/api/temperature"

const maxResponseBodySize = 1 << 20 // 1MB

// transport limits; there is no per-request timeout, so these are the only
// bounds on a hung device
const (
	defaultMaxIdleConns          = 4
	defaultMaxIdleConnsPerHost   = 2
	defaultIdleConnTimeout       = 60 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
)

// EndpointURL builds the temperature endpoint URL from a device address.
//
// The address is a host or host:port ("172.20.10.2", "sensor.local:8080").
// An address that already carries an http:// or https:// scheme keeps it.
// Any path on the address is replaced by [TemperaturePath].
func EndpointURL(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", errors.New("device address cannot be empty")
	}

	raw := address
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid device address %q: %w", address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("device address scheme must be http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("device address %q has no host", address)
	}

	u.Path = TemperaturePath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Client fetches readings from a single device endpoint.
//
// Client does not set a request timeout; a fetch is bounded only by the
// transport's dial and response-header timeouts and by the caller's context.
// Response bodies are limited to 1MB.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the pooled default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used to report failed fetches.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the wall clock used to stamp readings that arrive
// without a timestamp.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a [Client] for the given endpoint URL.
//
// The default transport reuses connections to the device:
//   - MaxIdleConns: 4 total idle connections
//   - MaxIdleConnsPerHost: 2 idle connections
//   - IdleConnTimeout: 60 seconds
//   - Dial and response-header timeouts: 30 seconds
func NewClient(endpointURL string, opts ...ClientOption) *Client {
	c := &Client{
		url: endpointURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   defaultDialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          defaultMaxIdleConns,
				MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
				IdleConnTimeout:       defaultIdleConnTimeout,
				ResponseHeaderTimeout: defaultResponseHeaderTimeout,
			},
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint URL this client polls.
func (c *Client) URL() string {
	return c.url
}

// payload mirrors the device's JSON body. Pointers distinguish absent from zero.
type payload struct {
	Temperature *float64 `json:"temperature"`
	Timestamp   *float64 `json:"timestamp"`
}

// Fetch performs one GET against the device and decodes the reading.
//
// Every error returned is a [*FetchError]. Fetch never retries.
func (c *Client) Fetch(ctx context.Context) (Reading, error) {
	reading, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("temperature fetch failed", "url", c.url, "error", err.Error())
		return Reading{}, err
	}
	return reading, nil
}

func (c *Client) fetch(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Reading{}, networkError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, networkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return Reading{}, httpStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Reading{}, networkError(fmt.Errorf("failed to read response body: %w", err))
	}

	receivedAt := c.now()
	return decodeReading(body, receivedAt)
}

// maxTimestamp bounds |timestamp| so it converts to int64 exactly.
const maxTimestamp = float64(1 << 63)

// decodeReading parses a device body. A missing, null or zero timestamp is
// replaced by receivedAt. A timestamp that is not a whole number of
// milliseconds within int64 range is malformed.
func decodeReading(body []byte, receivedAt time.Time) (Reading, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Reading{}, malformedBodyError(err)
	}
	if p.Temperature == nil {
		return Reading{}, malformedBodyError(errors.New("missing temperature field"))
	}

	ts := receivedAt.UnixMilli()
	if p.Timestamp != nil && *p.Timestamp != 0 {
		v := *p.Timestamp
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v >= maxTimestamp || v < -maxTimestamp {
			return Reading{}, malformedBodyError(fmt.Errorf("timestamp %v is not an integer millisecond value", v))
		}
		ts = int64(v)
	}

	return Reading{
		Temperature: *p.Temperature,
		Timestamp:   ts,
	}, nil
}

// Close closes idle connections in the client's pool.
//
// Safe to call multiple times and on a nil client. The client remains usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
