// Package custody is a client for the wallet custody API.
//
// Every request is a JSON POST carrying a stamp header that authenticates the
// caller. Queries return immediately; submitted activities are polled until
// they reach a final status.
package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/keyport/keyport/internal/metrics"
	"github.com/keyport/keyport/internal/stamp"
)

// DefaultBaseURL is the production custody API host.
const DefaultBaseURL = "https://api.turnkey.com"

// API paths.
const (
	PathWhoami                = "/public/v1/query/whoami"
	PathListWallets           = "/public/v1/query/list_wallets"
	PathListWalletAccounts    = "/public/v1/query/list_wallet_accounts"
	PathGetActivity           = "/public/v1/query/get_activity"
	PathCreateSubOrganization = "/public/v1/submit/create_sub_organization"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollTimeout  = 30 * time.Second
	maxResponseSize     = 1 << 20
)

// Client talks to the custody API on behalf of a parent organization.
type Client struct {
	baseURL      *url.URL
	stamper      stamp.Stamper
	httpClient   *http.Client
	logger       *slog.Logger
	metrics      metrics.Recorder
	pollInterval time.Duration
	pollTimeout  time.Duration
	now          func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Client) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithPollInterval sets the initial delay between activity status checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPollTimeout bounds the total time spent waiting for an activity.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollTimeout = d
		}
	}
}

// WithClock overrides the time source used for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, stamper stamp.Stamper, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid custody api host: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid custody api host: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("invalid custody api host: missing host")
	}

	c := &Client{
		baseURL:      u,
		stamper:      stamper,
		httpClient:   NewHTTPClient(0),
		logger:       slog.Default(),
		metrics:      metrics.NewNoop(),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// WhoamiRequest returns the unsigned whoami request for an organization.
// The caller attaches a stamp, typically produced by a passkey in the browser.
func (c *Client) WhoamiRequest(organizationID string) (stamp.SignedRequest, error) {
	body, err := json.Marshal(organizationRequest{OrganizationID: organizationID})
	if err != nil {
		return stamp.SignedRequest{}, fmt.Errorf("failed to encode whoami request: %w", err)
	}
	return stamp.SignedRequest{URL: c.endpoint(PathWhoami), Body: string(body)}, nil
}

// StampGetWhoami builds a whoami request stamped with the client's stamper
// without sending it.
func (c *Client) StampGetWhoami(organizationID string) (stamp.SignedRequest, error) {
	req, err := c.WhoamiRequest(organizationID)
	if err != nil {
		return stamp.SignedRequest{}, err
	}
	st, err := c.stamp([]byte(req.Body))
	if err != nil {
		return stamp.SignedRequest{}, err
	}
	req.Stamp = st
	return req, nil
}

// ForwardSignedRequest sends a request stamped elsewhere and decodes the
// whoami-shaped response. The URL must point at the configured API host.
func (c *Client) ForwardSignedRequest(ctx context.Context, req stamp.SignedRequest) (*Whoami, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stamp.ErrInvalidSignedRequest, err)
	}
	if target.Scheme != c.baseURL.Scheme || target.Host != c.baseURL.Host {
		return nil, ErrForeignURL
	}
	if !strings.HasPrefix(target.Path, "/public/v1/") {
		return nil, ErrForeignURL
	}

	var out Whoami
	if err := c.send(ctx, target.String(), target.Path, []byte(req.Body), req.Stamp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) stamp(body []byte) (stamp.Stamp, error) {
	if c.stamper == nil {
		return stamp.Stamp{}, stamp.ErrMissingKey
	}
	st, err := c.stamper.Stamp(body)
	if err != nil {
		return stamp.Stamp{}, fmt.Errorf("failed to stamp request: %w", err)
	}
	return st, nil
}

// post encodes payload, stamps it and sends it to path.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	st, err := c.stamp(body)
	if err != nil {
		return err
	}
	return c.send(ctx, c.endpoint(path), path, body, st, out)
}

func (c *Client) send(ctx context.Context, target, path string, body []byte, st stamp.Stamp, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(st.HeaderName, st.HeaderValue)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveCustodyRequest(path, "error", time.Since(start))
		return fmt.Errorf("custody request %s: %w", path, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	c.metrics.ObserveCustodyRequest(path, strconv.Itoa(resp.StatusCode), duration)
	c.logger.Debug("custody request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &RequestError{StatusCode: resp.StatusCode}
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil {
			reqErr.Code = apiErr.Code
			reqErr.Message = apiErr.Message
			reqErr.Details = apiErr.Details
		}
		return reqErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
