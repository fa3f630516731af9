package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10

	MainnetAPI = "https://api.hyperliquid.xyz"
	TestnetAPI = "https://api.hyperliquid-testnet.xyz"
)

// Client is the HTTPS transport with the two venue endpoints. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit caps outgoing requests per second. Zero disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, logger *logrus.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info posts an unauthenticated query to {api}/info.
func (c *Client) Info(ctx context.Context, body, out interface{}) error {
	return c.post(ctx, "/info", body, out)
}

// Exchange posts a signed envelope to {api}/exchange.
func (c *Client) Exchange(ctx context.Context, body, out interface{}) error {
	return c.post(ctx, "/exchange", body, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	// A request that has started is allowed to finish even if the operator
	// interrupts; each POST is a single venue transaction.
	reqCtx := context.WithoutCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrNetwork, path, err)
	}

	c.logger.WithFields(logrus.Fields{
		"path":    path,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("venue request")

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedJSON, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
