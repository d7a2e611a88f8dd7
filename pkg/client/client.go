// Package client provides the transit API HTTP client with retry, error
// classification and paged collection fetching.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/transit-cache/pkg/logging"
)

// Prometheus metrics for transit API requests.
var (
	remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_remote_requests_total",
		Help: "Total transit API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_remote_request_duration_seconds",
		Help:    "Transit API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	remoteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_remote_errors_total",
		Help: "Total transit API errors by class",
	}, []string{"class"})
)

// PagesHeader carries the total page count of a paged listing.
const PagesHeader = "X-Pages"

// Client talks to the transit API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the transit API, e.g. "https://api.transit.example".
	BaseURL string

	// UserAgent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Retry
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   15 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new transit API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logging.NewLogger("transit-client"),
	}, nil
}

// Get performs a GET request against path (relative to the base URL) and
// returns the body of a 2xx response.
//
// Server, rate-limit and network failures are retried with backoff. Every
// failure is returned as a *FetchError.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	target := c.resolve(path, query)

	startTime := time.Now()
	defer func() {
		remoteRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", path).
		Str("url", target).
		Msg("Executing transit API request")

	var (
		body   []byte
		header http.Header
	)

	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return &FetchError{Class: ErrorClassClient, Endpoint: path, Message: "create request", Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			remoteErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			remoteRequestsTotal.WithLabelValues(path, "network_error").Inc()
			return &FetchError{Class: ErrorClassNetwork, Endpoint: path, Err: err}
		}
		defer resp.Body.Close()

		status := strconv.Itoa(resp.StatusCode)
		remoteRequestsTotal.WithLabelValues(path, status).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			class := classifyStatus(resp.StatusCode)
			remoteErrorsTotal.WithLabelValues(string(class)).Inc()
			// Drain so the connection can be reused
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

			c.logger.Warn().
				Str("endpoint", path).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Transit API request error")

			return &FetchError{StatusCode: resp.StatusCode, Class: class, Endpoint: path, Message: resp.Status}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			remoteErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &FetchError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Endpoint: path, Message: "read body", Err: err}
		}

		body = data
		header = resp.Header
		return nil
	}, classifyError)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Class: ErrorClassNetwork, Endpoint: path, Err: err}
		}
		c.logger.Error().Err(err).Str("endpoint", path).Msg("Transit API request failed")
		return nil, nil, err
	}

	return body, header, nil
}

// FetchPage fetches one page of a paged listing. The total page count is
// read from the X-Pages header; a listing without it has one page.
func (c *Client) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, int, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(pageNum))

	data, header, err := c.Get(ctx, endpoint, query)
	if err != nil {
		return nil, 0, err
	}

	totalPages := 1
	if raw := header.Get(PagesHeader); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, 0, &FetchError{
				StatusCode: http.StatusOK,
				Class:      ErrorClassDecode,
				Endpoint:   endpoint,
				Message:    fmt.Sprintf("invalid %s header %q", PagesHeader, raw),
			}
		}
		totalPages = n
	}

	return data, totalPages, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetLogger replaces the component logger.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// classifyStatus categorizes a non-2xx HTTP status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx that were not followed
		return ErrorClassClient
	}
}

// classifyError extracts the class of a FetchError for the retry loop.
func classifyError(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ErrorClassNetwork
}
