// Package client provides the push API HTTP client with credential
// injection, rate limiting, conditional caching and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brutalpush/pushclient/pkg/cache"
	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/brutalpush/pushclient/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Prometheus metrics for API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_api_requests_total",
		Help: "Total push API requests by resource and status",
	}, []string{"resource", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "push_api_request_duration_seconds",
		Help:    "Push API request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_api_errors_total",
		Help: "Total push API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of API failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassUnauthorized represents 401 responses.
	ErrorClassUnauthorized ErrorClass = "unauthorized"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local rate limit blocks.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures with no response.
	ErrorClassNetwork ErrorClass = "network"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// API is the request surface the resource services depend on. *Client
// implements it.
type API interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, body any, out any) error
	Delete(ctx context.Context, path string, out any) error
	Credentials() credentials.Provider
}

var _ API = (*Client)(nil)

// Envelope is the {"data": ...} wrapper around push API response bodies.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// Client is the push API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	creds       credentials.Provider
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	breaker     *gobreaker.CircuitBreaker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the push API, e.g. "https://api.example.com".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Credentials supplies the bearer token (REQUIRED).
	Credentials credentials.Provider

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry policy. The default never retries.
	Retry RetryConfig

	// CircuitBreaker trips after consecutive network or 5xx failures.
	CircuitBreaker bool

	// Cache enables conditional GETs. nil disables caching.
	Cache *cache.Manager

	// RateLimiter gates requests on the server's quota. nil disables gating.
	RateLimiter *ratelimit.Tracker

	// HTTPClient overrides the underlying client (tests, custom transports).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string, creds credentials.Provider) Config {
	return Config{
		BaseURL:     baseURL,
		UserAgent:   "pushclient/0.1.0",
		Credentials: creds,
		Timeout:     30 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// New creates a new push API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials provider is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "push-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     base,
		creds:       cfg.Credentials,
		rateLimiter: cfg.RateLimiter,
		cache:       cfg.Cache,
		config:      cfg,
		logger:      logger,
	}

	if cfg.CircuitBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "push-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c, nil
}

// errServerStatus marks a 5xx response as a breaker failure while still
// handing the response back.
var errServerStatus = errors.New("server error status")

// Do performs an HTTP request through the client pipeline. Non-2xx responses
// are returned without error; callers decide how to surface them. An error is
// returned only when no response is available.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	resource := resourceLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Rate limit gate
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Allow(ctx); err != nil {
			apiRequestsTotal.WithLabelValues(resource, "rate_limited").Inc()
			apiErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			if errors.Is(err, ratelimit.ErrRateLimited) {
				return nil, &APIError{ErrorClass: ErrorClassRateLimit, Err: err}
			}
			return nil, &APIError{ErrorClass: ErrorClassNetwork, Err: err}
		}
	}

	// Step 2: Request id and credentials
	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(HeaderRequestID, requestID)
	}

	token, err := c.creds.Get(ctx, credentials.KeyToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read auth token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	// Step 3: Conditional request from cache
	var cacheKey cache.Key
	var cachedEntry *cache.Entry
	scope := cache.ScopeFromToken(token)
	useCache := c.cache != nil && req.Method == http.MethodGet
	if useCache {
		cacheKey = cache.Key{Scope: scope, Resource: req.URL.Path, Query: req.URL.Query()}
		cachedEntry, err = c.cache.Prepare(ctx, cacheKey, req.Header)
		if err != nil {
			c.logger.Warn().Err(err).Str("resource", resource).Msg("Cache lookup error")
		}
	}

	c.logger.Debug().
		Str("resource", resource).
		Str("method", req.Method).
		Str("request_id", requestID).
		Msg("Executing push API request")

	// Step 4: Execute with optional retry
	resp, err := c.execute(ctx, req, resource)
	if err != nil {
		return nil, err
	}

	// Step 5: Rate limit headers
	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	status := strconv.Itoa(resp.StatusCode)
	apiRequestsTotal.WithLabelValues(resource, status).Inc()

	// Step 6: Drop credentials the server rejected
	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("resource", resource).Msg("Token rejected - clearing credentials")
		if err := c.creds.Clear(ctx, credentials.KeyToken, credentials.KeyUser); err != nil {
			c.logger.Error().Err(err).Msg("Failed to clear credentials")
		}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		apiErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("request_id", requestID).
			Msg("Push API request error")
	}

	// Step 7: Serve 304 from cache
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("resource", resource).Msg("304 Not Modified - using cache")
		if err := c.cache.Revalidated(ctx, cacheKey, cachedEntry, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to extend cache entry")
		}
		resp.Body.Close()
		return cachedEntry.Replay(req), nil
	}

	// Step 8: Store fresh GET responses, drop pages a write made stale
	if c.cache != nil {
		switch {
		case useCache && resp.StatusCode == http.StatusOK:
			if err := c.cache.Capture(ctx, cacheKey, resp); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			}
		case resp.StatusCode == http.StatusUnauthorized:
			if _, err := c.cache.Purge(ctx, scope); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to purge cache")
			}
		case req.Method != http.MethodGet && req.Method != http.MethodHead && resp.StatusCode < 300:
			if _, err := c.cache.Invalidate(ctx, scope, c.collectionPath(req.URL.Path)); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to invalidate cache")
			}
		}
	}

	return resp, nil
}

// execute sends the request, applying the retry policy for idempotent methods.
func (c *Client) execute(ctx context.Context, req *http.Request, resource string) (*http.Response, error) {
	retry := c.config.Retry
	if !isIdempotent(req.Method) || retryDisabled(ctx) {
		retry.MaxAttempts = 1
	}

	var resp *http.Response
	err := retryWithBackoff(ctx, retry, func(attempt int, last bool) (ErrorClass, error) {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return "", fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		r, err := c.roundTrip(req)
		if err != nil {
			apiRequestsTotal.WithLabelValues(resource, "network_error").Inc()
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			c.logger.Error().Err(err).Str("resource", resource).Msg("HTTP request failed")
			return ErrorClassNetwork, &APIError{
				ErrorClass: ErrorClassNetwork,
				RequestID:  req.Header.Get(HeaderRequestID),
				Err:        err,
			}
		}

		class := classifyStatus(r.StatusCode)
		if shouldRetry(class) && !last {
			apiRequestsTotal.WithLabelValues(resource, strconv.Itoa(r.StatusCode)).Inc()
			r.Body.Close()
			return class, &APIError{StatusCode: r.StatusCode, ErrorClass: class}
		}

		resp = r
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// roundTrip runs one HTTP exchange, through the circuit breaker if enabled.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})

	if errors.Is(err, errServerStatus) {
		return result.(*http.Response), nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// classifyStatus maps a status code to an error class, "" for success.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ErrorClassUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// resourceLabel collapses ids out of a path to keep metric cardinality bounded:
// "/subscriptions/3f0c...-..." becomes "/subscriptions/:id".
func resourceLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// collectionPath returns the collection a write touches: the base path plus
// the first segment, "/subscriptions" for "/subscriptions/devices".
func (c *Client) collectionPath(p string) string {
	base := strings.TrimSuffix(c.baseURL.Path, "/")
	rest := strings.TrimPrefix(strings.TrimPrefix(p, base), "/")
	first, _, _ := strings.Cut(rest, "/")
	return base + "/" + first
}

// URL resolves an API path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON performs a POST with a JSON body and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// Delete performs a DELETE and decodes the JSON response into out (may be nil).
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			RequestID:  req.Header.Get(HeaderRequestID),
			Err:        fmt.Errorf("read response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    parseErrorMessage(data),
			RequestID:  req.Header.Get(HeaderRequestID),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Credentials returns the provider the client authenticates with.
func (c *Client) Credentials() credentials.Provider {
	return c.creds
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
