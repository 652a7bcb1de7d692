package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dive/internal/shared"
)

const (
	DefaultBaseURL       = "https://api.spotify.com/v1"
	DefaultMaxRetries    = 5
	DefaultRetryFallback = 3 * time.Second
	DefaultRetryMargin   = 500 * time.Millisecond

	maxErrorBody = 512
)

// Options configures a [Gateway]. Zero values take the defaults above; a
// negative MaxRetries disables retries and a negative RetryMargin disables the margin.
type Options struct {
	BaseURL       string
	Client        *http.Client
	Throttle      Throttle
	MaxRetries    int
	RetryFallback time.Duration
	RetryMargin   time.Duration
	Logger        *log.Logger
}

// Stats counts gateway activity since construction.
type Stats struct {
	Requests  int64
	Succeeded int64
	Retries   int64
	Failed    int64
}

// Gateway issues authorized, throttled and retried JSON requests.
type Gateway struct {
	baseURL    string
	client     *http.Client
	creds      Credentials
	throttle   Throttle
	maxRetries int
	fallback   time.Duration
	margin     time.Duration
	logger     *log.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	requests, succeeded, retries, failed atomic.Int64
}

// New creates a Gateway that authorizes requests with creds.
func New(creds Credentials, opts Options) *Gateway {
	g := &Gateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     opts.Client,
		creds:      creds,
		throttle:   opts.Throttle,
		maxRetries: opts.MaxRetries,
		fallback:   opts.RetryFallback,
		margin:     opts.RetryMargin,
		logger:     opts.Logger,
		sleep:      sleepContext,
	}
	if g.baseURL == "" {
		g.baseURL = DefaultBaseURL
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: 30 * time.Second}
	}
	if g.throttle == nil {
		g.throttle = NewCooldownThrottle(50, 4*time.Second)
	}
	switch {
	case g.maxRetries == 0:
		g.maxRetries = DefaultMaxRetries
	case g.maxRetries < 0:
		g.maxRetries = 0
	}
	if g.fallback <= 0 {
		g.fallback = DefaultRetryFallback
	}
	switch {
	case g.margin == 0:
		g.margin = DefaultRetryMargin
	case g.margin < 0:
		g.margin = 0
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard)
	}
	return g
}

// FromConfig builds a Gateway from the [gateway] config section.
func FromConfig(cfg shared.GatewayConfig, creds Credentials, logger *log.Logger) (*Gateway, error) {
	throttle, err := NewThrottle(cfg.Strategy, cfg.RequestsLimit, cfg.Cooldown.Duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return New(creds, Options{
		BaseURL:       cfg.BaseURL,
		Client:        &http.Client{Timeout: timeout},
		Throttle:      throttle,
		MaxRetries:    cfg.MaxRetries,
		RetryFallback: cfg.RetryFallback.Duration,
		RetryMargin:   cfg.RetryMargin.Duration,
		Logger:        shared.WithLogger(logger, "component", "gateway"),
	}), nil
}

// Stats returns a snapshot of the request counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Requests:  g.requests.Load(),
		Succeeded: g.succeeded.Load(),
		Retries:   g.retries.Load(),
		Failed:    g.failed.Load(),
	}
}

// Get decodes the JSON response of GET path into out.
func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Send(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out (which may be nil).
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Send(ctx, http.MethodPost, path, body, out)
}

// Send performs one logical request. path is relative to the base URL unless it is absolute.
func (g *Gateway) Send(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		delay, err := g.attempt(ctx, method, path, payload, out)
		if err == nil {
			g.succeeded.Add(1)
			return nil
		}
		lastErr = err

		if delay < 0 || ctx.Err() != nil {
			g.failed.Add(1)
			return err
		}
		if attempt >= g.maxRetries {
			g.failed.Add(1)
			return fmt.Errorf("%w after %d attempts: %w", shared.ErrRetriesExhausted, attempt+1, lastErr)
		}

		g.retries.Add(1)
		g.logger.Warn("retrying request", "method", method, "path", path, "attempt", attempt+1, "delay", delay, "err", err)
		if err := g.sleep(ctx, delay); err != nil {
			g.failed.Add(1)
			return err
		}
	}
}

// attempt issues a single HTTP request. A negative delay means the error is final.
func (g *Gateway) attempt(ctx context.Context, method, path string, payload []byte, out any) (time.Duration, error) {
	if err := g.throttle.Acquire(ctx); err != nil {
		return -1, err
	}

	token, err := g.creds.Token(ctx)
	if err != nil {
		return -1, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.url(path), body)
	if err != nil {
		return -1, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	g.requests.Add(1)
	g.logger.Debug("request", "method", method, "path", path)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return g.fallback, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return g.fallback, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return 0, nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return -1, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
		return 0, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
	retryAfter, hasRetryAfter := parseRetryAfter(resp.Header)
	statusErr.RetryAfter = retryAfter

	switch {
	case errors.Is(statusErr, shared.ErrTokenExpired):
		g.creds.Expire()
		return -1, statusErr
	case statusErr.Retryable():
		if hasRetryAfter {
			return retryAfter + g.margin, statusErr
		}
		return g.fallback, statusErr
	default:
		return -1, statusErr
	}
}

func (g *Gateway) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return g.baseURL + path
}
