package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultRetryMax is the number of retries on 5xx, 429 and connection errors.
	DefaultRetryMax = 2
	// DefaultRetryWaitMin is the first retry delay.
	DefaultRetryWaitMin = 200 * time.Millisecond
	// DefaultRetryWaitMax caps the retry delay.
	DefaultRetryWaitMax = 2 * time.Second
	// DefaultTimeout bounds a single upstream attempt.
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 8 << 20
)

// InfuraMainnetURL returns the Ethereum mainnet endpoint for an Infura key.
func InfuraMainnetURL(apiKey string) string {
	return "https://mainnet.infura.io/v3/" + apiKey
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type reply struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// UpstreamOption configures an Upstream.
type UpstreamOption func(*retryablehttp.Client)

// WithRetry overrides the retry policy.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) UpstreamOption {
	return func(c *retryablehttp.Client) {
		c.RetryMax = retryMax
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) UpstreamOption {
	return func(c *retryablehttp.Client) {
		c.HTTPClient.Timeout = d
	}
}

// Upstream forwards JSON-RPC calls to a blockchain node.
type Upstream struct {
	url    string
	client *retryablehttp.Client
	nextID atomic.Uint64
}

// NewUpstream creates a JSON-RPC client for rawURL.
func NewUpstream(rawURL string, logger *slog.Logger, opts ...UpstreamOption) (*Upstream, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid rpc url %q", redactURL(rawURL))
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = DefaultRetryMax
	client.RetryWaitMin = DefaultRetryWaitMin
	client.RetryWaitMax = DefaultRetryWaitMax
	client.HTTPClient.Timeout = DefaultTimeout
	// The URL carries the node API key, so retryablehttp's own logging stays off.
	client.Logger = nil
	redacted := redactURL(rawURL)
	client.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn("retrying rpc request",
				slog.String("url", redacted),
				slog.Int("attempt", attempt),
			)
		}
	}
	for _, opt := range opts {
		opt(client)
	}

	return &Upstream{url: rawURL, client: client}, nil
}

// Call sends method with params and returns the raw result.
// A JSON-RPC error object in the reply is returned as *RPCError.
func (u *Upstream) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		params = json.RawMessage("[]")
	}

	body, err := json.Marshal(envelope{
		JSONRPC: "2.0",
		ID:      u.nextID.Add(1) - 1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out reply
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
	if len(out.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return out.Result, nil
}

// redactURL strips the path, which carries the API key for hosted nodes.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "<invalid>"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
