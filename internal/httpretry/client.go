package httpretry

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lysyi3m/onthisday/internal/metrics"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 400 * time.Millisecond
	DefaultMaxDelay  = 2 * time.Second
)

type Options struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Label identifies the request in logs, e.g. "wikidata:Q42".
	Label string
	// Upstream names the service in metrics, e.g. "wikidata".
	Upstream string
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// Client issues HTTP requests and retries on 5xx, 429 and transport errors.
type Client struct {
	HTTP    *http.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func New(httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(30 * time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{HTTP: httpClient, Logger: logger, Metrics: m, Sleep: sleepContext}
}

// Delay returns the wait after the attempt with the given zero-based index.
func Delay(attemptIndex int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attemptIndex; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func Retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// Do sends req until a response arrives whose status is neither 5xx nor 429.
// Other 4xx responses are returned to the caller as-is. The caller closes the
// body of the returned response.
func (c *Client) Do(ctx context.Context, req *http.Request, opts Options) (*http.Response, error) {
	opts = opts.withDefaults()
	label := opts.Label
	if label == "" {
		label = req.Method + " " + req.URL.Path
	}
	upstream := cmp.Or(opts.Upstream, "other")

	var lastErr error
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.HTTP.Do(req.Clone(ctx))
		switch {
		case err != nil:
			lastErr = err
			c.Metrics.HTTPAttempt(upstream, "transport_error")
			c.Logger.Warn("HTTP attempt failed",
				"label", label,
				"attempt", attempt+1,
				"max_attempts", opts.Attempts,
				"error", err)
		case Retryable(resp.StatusCode):
			lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
			drain(resp)
			c.Metrics.HTTPAttempt(upstream, "retryable_status")
			c.Logger.Warn("HTTP attempt returned retryable status",
				"label", label,
				"attempt", attempt+1,
				"max_attempts", opts.Attempts,
				"status", resp.StatusCode)
		default:
			c.Metrics.HTTPAttempt(upstream, "ok")
			c.Logger.Debug("HTTP attempt completed",
				"label", label,
				"attempt", attempt+1,
				"status", resp.StatusCode)
			return resp, nil
		}

		if attempt == opts.Attempts-1 {
			break
		}

		delay := Delay(attempt, opts.BaseDelay, opts.MaxDelay)
		c.Logger.Debug("HTTP retry scheduled", "label", label, "attempt", attempt+1, "delay", delay.String())
		if err := c.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", label, opts.Attempts, lastErr)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
