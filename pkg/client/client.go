// Package client provides the RemoteFetcher: a small HTTP client for the
// public catalog API that fetches one resource at a time with bounded
// retries and exponential backoff on rate limiting.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sternrassler/menu-bot/pkg/logging"
)

// Prometheus metrics for upstream fetches.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menubot_upstream_requests_total",
		Help: "Total upstream HTTP attempts by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "menubot_upstream_fetch_duration_seconds",
		Help:    "Duration of a logical upstream fetch including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menubot_upstream_errors_total",
		Help: "Total upstream attempt errors by class",
	}, []string{"class"})
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassRequest represents a request that could not be built.
	ErrorClassRequest ErrorClass = "request"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is prefixed to every resource path, e.g. "https://host/api".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// AttemptTimeout bounds a single HTTP attempt.
	AttemptTimeout time.Duration

	// Retry controls attempts and backoff.
	Retry RetryPolicy
}

// DefaultConfig returns the default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "YSGTelegramBot/1.0",
		AttemptTimeout: 10 * time.Second,
		Retry:          DefaultRetryPolicy(),
	}
}

// Client is the catalog API fetcher.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	tracer     trace.Tracer
	sleep      sleepFunc
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base url must be http(s) (got %q)", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.AttemptTimeout <= 0 {
		return nil, fmt.Errorf("attempt timeout must be positive (got %s)", cfg.AttemptTimeout)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{},
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentFetcher),
		tracer:     otel.Tracer("github.com/Sternrassler/menu-bot/pkg/client"),
		sleep:      sleepContext,
	}, nil
}

// Fetch performs one logical GET of path, retrying per the configured
// policy. The returned error always wraps ErrResourceUnavailable unless the
// caller's context ended first.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "client.Fetch", trace.WithAttributes(
		attribute.String("upstream.path", path),
	))
	defer span.End()

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.config.Retry, c.sleep, c.logger, func(attempt int) error {
		c.logger.Debug().
			Str("endpoint", path).
			Int("attempt", attempt).
			Int("max_attempts", c.config.Retry.MaxAttempts).
			Msg("Fetching upstream resource")

		data, err := c.attempt(ctx, path)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceUnavailable, path, err)
	}

	span.SetAttributes(attribute.Int("upstream.bytes", len(body)))
	c.logger.Info().
		Str("endpoint", path).
		Dur("duration", time.Since(startTime)).
		Msg("Fetched upstream resource")

	return body, nil
}

// attempt runs a single bounded HTTP request.
func (c *Client) attempt(ctx context.Context, path string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, &UpstreamError{ErrorClass: ErrorClassRequest, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status := "network_error"
		if isContextErr(err) {
			status = "timeout"
		}
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(path, status).Inc()
		c.logger.Warn().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		return nil, err
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream request error")

		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		// 4xx and the odd 1xx/3xx that escaped redirect handling.
		return ErrorClassClient
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
