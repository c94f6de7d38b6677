package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vietddude/ratesync/internal/core/retry"
	"github.com/vietddude/ratesync/internal/metrics"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter string
}

func (e *StatusError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("http %d (retry after %s): %s", e.Code, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	Name      string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	UserAgent string
	Executor  *retry.Executor
	Breaker   *retry.CircuitBreaker
	Logger    *slog.Logger
}

// Client performs JSON GET requests against one upstream.
type Client struct {
	name       string
	httpClient *http.Client
	executor   *retry.Executor
	breaker    *retry.CircuitBreaker
	limiter    *rate.Limiter
	userAgent  string
	log        *slog.Logger
}

// NewClient creates a client. Requests go through opts.Executor when set and
// the breaker, if any, wraps the whole retry sequence.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Client{
		name: opts.Name,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		executor:  opts.Executor,
		breaker:   opts.Breaker,
		limiter:   limiter,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
}

// get fetches url and hands the body to decode. Decode errors are permanent.
func (c *Client) get(ctx context.Context, url string, decode func(io.Reader) error) error {
	call := func(ctx context.Context) error {
		if c.executor == nil {
			return c.do(ctx, url, decode)
		}
		out, err := c.executor.Execute(ctx, func(ctx context.Context) error {
			return c.do(ctx, url, decode)
		})
		if err != nil {
			return fmt.Errorf("GET %s failed after %d attempts: %w", url, out.Attempts, err)
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.Execute(ctx, call)
	}
	return call(ctx)
}

func (c *Client) do(ctx context.Context, url string, decode func(io.Reader) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("request %s: %w", c.name, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Code:       resp.StatusCode,
			Body:       string(body),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	if err := decode(resp.Body); err != nil {
		return retry.Permanent(fmt.Errorf("parse %s response: %w", c.name, err))
	}
	return nil
}
