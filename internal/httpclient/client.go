package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Transport failure classes. Errors returned by Do wrap one of these unless
// the caller's context was canceled.
var (
	ErrTimeout = errors.New("request timed out")
	ErrNetwork = errors.New("network error")
)

// Config holds transport configuration.
type Config struct {
	Timeout time.Duration
}

// DefaultConfig returns the fixed client-wide timeout.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// Client wraps http.Client with request logging and failure classification.
// It never retries.
type Client struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

// New creates a new Client with a default http.Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}
}

// NewWithHTTPClient creates a Client with a custom http.Client (e.g. for tests or proxies).
func NewWithHTTPClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = cfg.Timeout
	}
	return &Client{
		http:   httpClient,
		config: cfg,
		logger: logger,
	}
}

// Do executes a single HTTP request. Non-2xx responses are returned to the
// caller untouched; only transport failures produce an error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// Path only: the query string carries the API key.
	c.logger.Debug("api request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		classified := classify(err)
		c.logger.Debug("api request failed",
			slog.String("path", req.URL.Path),
			slog.String("error", classified.Error()),
		)
		return nil, classified
	}

	c.logger.Debug("api response",
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// classify wraps a transport error with ErrTimeout or ErrNetwork.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
