// Package client is the gateway to the Free Astrology API. It posts birth
// details to chart and position endpoints, rotates through the configured
// API keys on soft failures and caches successful payloads.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/cache"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/logging"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/ratelimit"
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astro_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "astro_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astro_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	credentialFailoversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astro_credential_failovers_total",
		Help: "Times rotation moved past a credential, by soft-failure class",
	}, []string{"reason"})
)

const (
	// DefaultBaseURL is the public Free Astrology API.
	DefaultBaseURL = "https://json.freeastrologyapi.com"

	// DefaultTimeout bounds each attempt with one credential.
	DefaultTimeout = 30 * time.Second

	// PositionsEndpoint is the upstream endpoint for planetary positions.
	PositionsEndpoint = "planets"

	// maxResponseBytes caps an upstream body.
	maxResponseBytes = 8 << 20
)

// Client is the upstream gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKeys    []string
	timeout    time.Duration
	diagrams   cache.Cache[string]
	positions  cache.Cache[json.RawMessage]
	keyFunc    cache.KeyFunc
	tracker    *ratelimit.Tracker
	group      singleflight.Group
	logger     zerolog.Logger
}

// Config holds the gateway configuration.
type Config struct {
	// BaseURL of the upstream API, without trailing slash.
	BaseURL string

	// APIKeys in rotation order. Empty strings are dropped.
	APIKeys []string

	// Timeout per credential attempt.
	Timeout time.Duration

	// Diagrams caches SVG text by chart key.
	Diagrams cache.Cache[string]

	// Positions caches the raw "output" of the planets endpoint.
	Positions cache.Cache[json.RawMessage]

	// KeyFunc derives cache keys (default cache.DeriveKey).
	KeyFunc cache.KeyFunc

	// Tracker receives per-credential outcomes. Optional; an in-process
	// tracker is created when nil.
	Tracker *ratelimit.Tracker
}

// DefaultConfig returns a configuration with in-memory caches sharing
// cache.DefaultTTL.
func DefaultConfig(apiKeys []string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		APIKeys:   apiKeys,
		Timeout:   DefaultTimeout,
		Diagrams:  cache.NewTTLCache[string]("diagrams", cache.DefaultTTL),
		Positions: cache.NewTTLCache[json.RawMessage](cache.KindPlanets, cache.DefaultTTL),
		KeyFunc:   cache.DeriveKey,
	}
}

// New creates a gateway.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	if cfg.Diagrams == nil || cfg.Positions == nil {
		return nil, fmt.Errorf("diagram and position caches are required")
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = cache.DeriveKey
	}

	logger := logging.NewLogger("astro-client")

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = ratelimit.NewTracker(len(keys), nil, logger)
	}
	if tracker.Len() != len(keys) {
		return nil, fmt.Errorf("tracker covers %d credentials, %d configured", tracker.Len(), len(keys))
	}

	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKeys:    keys,
		timeout:    cfg.Timeout,
		diagrams:   cfg.Diagrams,
		positions:  cfg.Positions,
		keyFunc:    keyFunc,
		tracker:    tracker,
		logger:     logger,
	}, nil
}

// DiagramResult is a rendered chart.
type DiagramResult struct {
	SVG    string
	Cached bool

	// Key is the cache key, empty for uncacheable fetches.
	Key cache.Key
}

// PositionsResult is the planets endpoint "output" value.
type PositionsResult struct {
	Output json.RawMessage
	Cached bool
	Key    cache.Key
}

// reply is a successful upstream response.
type reply struct {
	body []byte

	// output is the "output" member, nil when absent or not JSON.
	output json.RawMessage
}

// FetchDiagram returns the SVG for endpoint. A nil variant disables
// caching; otherwise the variant code is the cache kind.
func (c *Client) FetchDiagram(ctx context.Context, endpoint string, r chart.BirthRequest, v *chart.Variant) (*DiagramResult, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, &FetchError{Class: ErrorClassInvalidInput, Message: "endpoint is required"}
	}

	if v == nil {
		rep, err := c.fetch(ctx, endpoint, r)
		if err != nil {
			return nil, err
		}
		svg, _ := diagramText(rep)
		return &DiagramResult{SVG: svg}, nil
	}

	key := c.keyFunc(v.Code, r)
	if svg, ok := lookup(ctx, c.diagrams, key, c.logger); ok {
		c.logger.Debug().Str("endpoint", endpoint).Str("key", key.String()).Bool("cache_hit", true).Msg("Diagram served from cache")
		return &DiagramResult{SVG: svg, Cached: true, Key: key}, nil
	}

	res, err := c.shared(ctx, "diagram:"+key.String(), func(ctx context.Context) (any, error) {
		rep, err := c.fetch(ctx, endpoint, r)
		if err != nil {
			return nil, err
		}
		svg, ok := diagramText(rep)
		if ok {
			store(ctx, c.diagrams, key, svg, c.logger)
		}
		return DiagramResult{SVG: svg, Key: key}, nil
	})
	if err != nil {
		return nil, err
	}

	out := res.(DiagramResult)
	return &out, nil
}

// FetchPositions returns the planetary-position table, cached under the
// "planets" kind.
func (c *Client) FetchPositions(ctx context.Context, r chart.BirthRequest) (*PositionsResult, error) {
	key := c.keyFunc(cache.KindPlanets, r)
	if raw, ok := lookup(ctx, c.positions, key, c.logger); ok {
		c.logger.Debug().Str("endpoint", PositionsEndpoint).Str("key", key.String()).Bool("cache_hit", true).Msg("Positions served from cache")
		return &PositionsResult{Output: raw, Cached: true, Key: key}, nil
	}

	res, err := c.shared(ctx, "positions:"+key.String(), func(ctx context.Context) (any, error) {
		rep, err := c.fetch(ctx, PositionsEndpoint, r)
		if err != nil {
			return nil, err
		}
		if rep.output == nil {
			return PositionsResult{Output: rawJSON(rep.body), Key: key}, nil
		}
		store(ctx, c.positions, key, rep.output, c.logger)
		return PositionsResult{Output: rep.output, Key: key}, nil
	})
	if err != nil {
		return nil, err
	}

	out := res.(PositionsResult)
	return &out, nil
}

// shared runs fn once per key across concurrent callers. The fetch is
// detached from any single caller's cancellation so every waiter gets the
// result; each caller still returns as soon as its own ctx is done.
func (c *Client) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch posts the payload with each credential in order until one succeeds
// or a hard failure stops rotation.
func (c *Client) fetch(ctx context.Context, endpoint string, r chart.BirthRequest) (*reply, error) {
	payload, err := json.Marshal(r.Payload())
	if err != nil {
		return nil, &FetchError{Class: ErrorClassInvalidInput, Message: "encode payload", Err: err}
	}
	url := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")

	var last *FetchError
	for i, apiKey := range c.apiKeys {
		credential := i + 1
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rep, ferr := c.attempt(ctx, url, endpoint, apiKey, payload)
		if ferr == nil {
			if err := c.tracker.RecordSuccess(ctx, credential); err != nil {
				c.logger.Warn().Err(err).Int("credential", credential).Msg("Failed to record credential success")
			}
			return rep, nil
		}

		// the caller gave up; further credentials would fail the same way
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !ferr.IsSoft() {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("credential", credential).
				Int("status_code", ferr.StatusCode).
				Str("error_class", string(ferr.Class)).
				Msg("Upstream rejected request")
			return nil, ferr
		}

		last = ferr
		credentialFailoversTotal.WithLabelValues(string(ferr.Class)).Inc()
		if err := c.tracker.RecordFailure(ctx, credential, string(ferr.Class)); err != nil {
			c.logger.Warn().Err(err).Int("credential", credential).Msg("Failed to record credential failure")
		}
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("credential", credential).
			Int("status_code", ferr.StatusCode).
			Str("error_class", string(ferr.Class)).
			Msg("Credential failed, trying next")
	}

	exhausted := &FetchError{Class: ErrorClassCredentialsExhausted, Message: DefaultExhaustedMessage}
	if last != nil {
		exhausted.Message = last.Message
		exhausted.StatusCode = last.StatusCode
		exhausted.Err = last
	}
	upstreamErrorsTotal.WithLabelValues(string(exhausted.Class)).Inc()
	c.logger.Error().
		Str("endpoint", endpoint).
		Int("credentials", len(c.apiKeys)).
		Str("error_class", string(exhausted.Class)).
		Msg("All credentials failed")
	return nil, exhausted
}

// attempt performs one POST with one credential under the per-attempt
// timeout.
func (c *Client) attempt(ctx context.Context, url, endpoint, apiKey string, payload []byte) (*reply, *FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &FetchError{Class: ErrorClassInvalidInput, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		return nil, c.transportError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.transportError(endpoint, err)
	}
	if len(body) > maxResponseBytes {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassUpstreamRejected)).Inc()
		return nil, &FetchError{
			Class:      ErrorClassUpstreamRejected,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("upstream response exceeds %d bytes", maxResponseBytes),
		}
	}

	upstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Upstream response")

	switch resp.StatusCode {
	case http.StatusOK:
		return &reply{body: body, output: outputOf(body)}, nil
	case http.StatusTooManyRequests:
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassRateLimited)).Inc()
		return nil, &FetchError{
			Class:      ErrorClassRateLimited,
			StatusCode: resp.StatusCode,
			Message:    "API error: 429 (Rate Limit)",
			Details:    string(body),
		}
	default:
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassUpstreamRejected)).Inc()
		return nil, &FetchError{
			Class:      ErrorClassUpstreamRejected,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API error: %d", resp.StatusCode),
			Details:    string(body),
		}
	}
}

// transportError classifies a failure that produced no usable response.
func (c *Client) transportError(endpoint string, err error) *FetchError {
	class := ErrorClassUpstreamUnreachable
	status := "network_error"
	msg := err.Error()

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		class = ErrorClassTimeout
		status = "timeout"
		msg = fmt.Sprintf("request timed out after %s", c.timeout)
	}

	upstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
	upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
	return &FetchError{Class: class, Message: msg, Err: err}
}

// outputOf extracts the "output" member of a response body. A body that is
// not a JSON object, or an absent or null output, yields nil.
func outputOf(body []byte) json.RawMessage {
	var envelope struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	if len(envelope.Output) == 0 || string(envelope.Output) == "null" {
		return nil
	}
	return envelope.Output
}

// diagramText returns the SVG text of a reply and whether it came from the
// output member. A JSON string output is unquoted; any other output is
// returned as its JSON text. Without output the raw body is returned.
func diagramText(rep *reply) (string, bool) {
	if rep.output == nil {
		return string(rep.body), false
	}
	var s string
	if err := json.Unmarshal(rep.output, &s); err == nil {
		return s, true
	}
	return string(rep.output), true
}

// rawJSON returns body as JSON, quoting it when it is not valid JSON.
func rawJSON(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

// lookup reads a cache, logging backend errors and treating them as a miss.
func lookup[T any](ctx context.Context, c cache.Cache[T], key cache.Key, logger zerolog.Logger) (T, bool) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		var zero T
		return zero, false
	}
	return v, ok
}

// store writes a cache entry on a best-effort basis.
func store[T any](ctx context.Context, c cache.Cache[T], key cache.Key, v T, logger zerolog.Logger) {
	if err := c.Put(ctx, key, v); err != nil {
		logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
		return
	}
	logger.Debug().Str("key", key.String()).Msg("Cached response")
}

// Ping checks the cache backends that can report availability.
func (c *Client) Ping(ctx context.Context) error {
	for _, b := range []any{c.diagrams, c.positions} {
		if p, ok := b.(cache.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("cache ping: %w", err)
			}
		}
	}
	return nil
}

// Credentials returns the number of configured API keys.
func (c *Client) Credentials() int {
	return len(c.apiKeys)
}

// Tracker returns the credential health tracker.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
