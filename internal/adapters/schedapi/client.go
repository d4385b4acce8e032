package schedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"ministry/internal/adapters/http/perf"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL   string        // e.g. "https://api.worshipacademy.org/api", no trailing slash
	Timeout   time.Duration // per attempt; 0 means 10s
	RPS       float64       // outbound request budget; 0 means unlimited
	Collector *perf.Collector

	// Retry policy for idempotent reads. Zero values mean 250ms initial delay and 3 tries.
	RetryInitial time.Duration
	MaxTries     uint

	// Transport overrides the instrumented default transport (tests).
	Transport http.RoundTripper
}

// Client calls the external scheduling and student auth API.
// It is safe for concurrent use.
type Client struct {
	baseURL      string
	http         *http.Client
	limiter      *rate.Limiter
	collector    *perf.Collector
	retryInitial time.Duration
	maxTries     uint
}

// New creates a Client.
// PRE: opts.BaseURL is an absolute URL
// POST: Returns a client whose requests are traced, throttled and timed
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	retryInitial := opts.RetryInitial
	if retryInitial <= 0 {
		retryInitial = 250 * time.Millisecond
	}
	maxTries := opts.MaxTries
	if maxTries == 0 {
		maxTries = 3
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		http:         &http.Client{Timeout: timeout, Transport: transport},
		limiter:      limiter,
		collector:    opts.Collector,
		retryInitial: retryInitial,
		maxTries:     maxTries,
	}
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// response is the raw outcome of one HTTP exchange.
type response struct {
	status int
	body   []byte
}

// envelope is the common part of every API response body.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do performs one request. Only failures to obtain a response are returned as errors.
func (c *Client) do(ctx context.Context, method, path, bearer string, payload any) (response, error) {
	op := method + " " + routeOf(path)

	if err := c.limiter.Wait(ctx); err != nil {
		return response{}, &Error{Kind: KindTransport, Op: op, Err: err}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return response{}, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(op, 0, start)
		slog.Warn("upstream_unreachable", "op", op, "error", err)
		return response{}, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.record(op, resp.StatusCode, start)
	if err != nil {
		return response{}, &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: err}
	}
	return response{status: resp.StatusCode, body: raw}, nil
}

func (c *Client) record(op string, status int, start time.Time) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	slog.Debug("upstream_call", "op", op, "status", status, "duration_ms", durationMs)
	if c.collector != nil {
		c.collector.Record(perf.Entry{
			Kind:       perf.KindUpstream,
			Path:       op,
			StatusCode: status,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// classify turns a non-2xx response into an *Error.
func classify(op string, r response) error {
	var env envelope
	_ = json.Unmarshal(r.body, &env)
	e := &Error{Op: op, Status: r.status, Message: env.text()}
	switch {
	case r.status >= 500:
		e.Kind = KindTransport
	case r.status == http.StatusConflict:
		e.Kind = KindBusiness
		e.Err = ErrSlotUnavailable
	default:
		e.Kind = KindBusiness
	}
	return e
}

// getWithRetry runs an idempotent GET, retrying transport failures and 5xx answers
// with exponential backoff. Any other outcome is returned after the first attempt.
func (c *Client) getWithRetry(ctx context.Context, path, bearer string) (response, error) {
	op := http.MethodGet + " " + routeOf(path)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = 8 * c.retryInitial

	r, err := backoff.Retry(ctx, func() (response, error) {
		r, err := c.do(ctx, http.MethodGet, path, bearer, nil)
		if err == nil && r.status >= 500 {
			err = classify(op, r)
		}
		if err == nil {
			return r, nil
		}
		var apiErr *Error
		if ctx.Err() != nil || !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return r, backoff.Permanent(err)
		}
		slog.Info("upstream_retry", "op", op, "error", err)
		return r, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return response{}, asAPIError(op, err)
	}
	return r, nil
}

// asAPIError guarantees callers always receive an *Error.
func asAPIError(op string, err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return err
	}
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
