// Package fetch provides the remote fetch capability: an HTTP client that returns
// the elements of the JSON array a media-library endpoint responds with, with
// request throttling, an optional Redis response cache, and error classification.
package fetch

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
	"time"

	"github.com/Sternrassler/media-browser/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL resolves relative request URLs (e.g., "http://localhost:5000/")
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests (0 = unlimited)
	RequestsPerSecond float64

	// Burst is the limiter burst size (default 1)
	Burst int

	// Retry configures transport-level retries (default: single attempt)
	Retry RetryConfig

	// Cache stores GET responses in Redis when set
	Cache *cache.Manager

	// CacheScope separates cache entries of different users
	CacheScope string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         "media-browser/0.1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 0,
		Burst:             1,
		Retry:             DefaultRetryConfig(),
	}
}

// Client is the HTTP implementation of Fetcher.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

var _ Fetcher = (*Client)(nil)

// New creates a new fetch client.
func New(cfg Config) (*Client, error) {
	var base *url.URL
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
		}
		base = parsed
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limiter := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		limiter:    limiter,
		cache:      cfg.Cache,
		config:     cfg,
		logger:     log.With().Str("component", "fetch").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Fetch performs req and returns the elements of the JSON array response.
func (c *Client) Fetch(ctx context.Context, req Request) ([]json.RawMessage, error) {
	body, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		fetchErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &Error{
			URL:        req.URL,
			StatusCode: http.StatusOK,
			Class:      ErrorClassDecode,
			Message:    "decode response",
			Err:        errors.Join(ErrNotArray, err),
		}
	}
	return items, nil
}

// Do performs req with throttling, caching and retries and returns the raw body
// of a 2xx response.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = MethodGet
	}

	startTime := time.Now()
	defer func() {
		fetchRequestDuration.WithLabelValues(string(method)).Observe(time.Since(startTime).Seconds())
	}()

	probe, err := req.HTTPRequest(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var (
		cacheKey cache.Key
		cached   *cache.Entry
	)
	useCache := c.cache != nil && method == MethodGet
	if useCache {
		cacheKey = cache.KeyFromURL(probe.URL, c.config.CacheScope)
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			fetchCacheServedTotal.Inc()
			c.logger.Debug().Str("url", probe.URL.String()).Msg("Serving node data from cache")
			return entry.Data, nil
		case err == nil:
			cached = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("url", probe.URL.String()).Msg("Cache get error")
		}
	}

	var body []byte
	var resp *http.Response

	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() (ErrorClass, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		// A fresh *http.Request per attempt; POST bodies are single-use
		httpReq, err := req.HTTPRequest(ctx, c.baseURL)
		if err != nil {
			return "", err
		}
		httpReq.Header.Set("Accept", "application/json")
		if c.config.UserAgent != "" {
			httpReq.Header.Set("User-Agent", c.config.UserAgent)
		}
		if cached != nil {
			cache.AddConditionalHeaders(httpReq, cached)
		}

		c.logger.Debug().
			Str("method", string(method)).
			Str("url", httpReq.URL.String()).
			Msg("Executing fetch")

		var reqErr error
		resp, reqErr = c.httpClient.Do(httpReq)
		if reqErr != nil {
			fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			fetchRequestsTotal.WithLabelValues(string(method), "network_error").Inc()
			c.logger.Warn().Err(reqErr).Str("url", httpReq.URL.String()).Msg("HTTP request failed")
			return ErrorClassNetwork, &Error{
				URL:     req.URL,
				Class:   ErrorClassNetwork,
				Message: "request failed",
				Err:     reqErr,
			}
		}
		defer resp.Body.Close()

		fetchRequestsTotal.WithLabelValues(string(method), strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusNotModified && cached != nil {
			body = cached.Data
			return "", nil
		}

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return ErrorClassNetwork, &Error{
				URL:        req.URL,
				StatusCode: resp.StatusCode,
				Class:      ErrorClassNetwork,
				Message:    "read body",
				Err:        readErr,
			}
		}

		if class := classifyStatus(resp.StatusCode); class != "" {
			fetchErrorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("url", httpReq.URL.String()).
				Int("status_code", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Fetch returned error status")
			return class, &Error{
				URL:        req.URL,
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
				Err:        errorBody(data),
			}
		}

		body = data
		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if useCache {
		c.store(ctx, cacheKey, cached, resp, body)
	}

	return body, nil
}

// store writes a successful GET response to the cache, or refreshes the
// revalidated entry after a 304.
func (c *Client) store(ctx context.Context, key cache.Key, cached *cache.Entry, resp *http.Response, body []byte) {
	if resp == nil {
		return
	}

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		refreshed := cache.EntryFromResponse(resp, cached.Data, c.cache.DefaultTTL())
		if refreshed == nil {
			return
		}
		if err := c.cache.Refresh(ctx, key, cached, refreshed.Expires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		return
	}

	if resp.StatusCode != http.StatusOK {
		return
	}
	entry := cache.EntryFromResponse(resp, body, c.cache.DefaultTTL())
	if entry == nil {
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().Str("key", key.String()).Dur("ttl", entry.TTL()).Msg("Cached response")
}

// errorBody turns a short error response body into an error for context.
func errorBody(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if len(data) > 256 {
		data = data[:256]
	}
	return errors.New(string(data))
}
