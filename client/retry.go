package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RetryConfig controls the retry policy of RetryingClient.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// RetryDelay is the base delay; attempt n waits RetryDelay*n before n+1.
	RetryDelay time.Duration
	// RequestsPerSecond throttles attempts client-side. Zero disables it.
	RequestsPerSecond float64
}

// DefaultRetryConfig returns the default policy: 3 attempts, 1s linear backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// retryState is the per-call bookkeeping of the retry loop.
type retryState struct {
	attempt int
	waited  time.Duration
}

// RetryingClient applies a bounded linear-backoff retry policy to single
// HTTP calls. Status 429, status >= 500 and transport errors are retried;
// any other status is returned to the caller on the first attempt.
//
// RetryingClient implements http.RoundTripper so it can sit under the
// generated API client.
type RetryingClient struct {
	next    http.RoundTripper
	cfg     RetryConfig
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryingClient wraps next (http.DefaultTransport when nil).
func NewRetryingClient(next http.RoundTripper, cfg RetryConfig) *RetryingClient {
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	c := &RetryingClient{
		next:  next,
		cfg:   cfg,
		sleep: sleepContext,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Config returns the effective retry configuration.
func (c *RetryingClient) Config() RetryConfig {
	return c.cfg
}

// HTTPClient returns an *http.Client whose transport is c.
func (c *RetryingClient) HTTPClient() *http.Client {
	return &http.Client{Transport: c}
}

// FetchWithRetry issues a GET for rawURL under the retry policy. On
// exhaustion it returns the last failing response, or the last transport
// error. The caller owns the response body.
func (c *RetryingClient) FetchWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.RoundTrip(req)
}

// RoundTrip implements http.RoundTripper.
func (c *RetryingClient) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	state := retryState{}

	for state.attempt = 1; ; state.attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		attemptReq, err := c.requestForAttempt(req, state.attempt)
		if err != nil {
			return nil, err
		}

		resp, err := c.next.RoundTrip(attemptReq)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}

		retryable := false
		switch {
		case err != nil:
			metrics.UpstreamAttempts.WithLabelValues("network").Inc()
			retryable = true
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			metrics.UpstreamAttempts.WithLabelValues("retryable").Inc()
			retryable = true
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			metrics.UpstreamAttempts.WithLabelValues("permanent").Inc()
		default:
			metrics.UpstreamAttempts.WithLabelValues("ok").Inc()
		}

		if !retryable || state.attempt >= c.cfg.MaxAttempts {
			if retryable {
				log.Warn().
					Str("path", req.URL.Path).
					Int("attempts", state.attempt).
					Dur("waited", state.waited).
					Msg("Retries exhausted")
			}
			return resp, err
		}

		delay := c.cfg.RetryDelay * time.Duration(state.attempt)
		event := log.Debug().
			Str("path", req.URL.Path).
			Int("attempt", state.attempt).
			Dur("delay", delay)
		if err != nil {
			event = event.Err(err)
		} else {
			event = event.Int("status", resp.StatusCode)
			discard(resp)
		}
		event.Msg("Retrying upstream request")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		state.waited += delay
	}
}

// requestForAttempt returns the request to send on the given attempt. The
// first attempt uses the caller's request; later attempts use a clone with a
// fresh body.
func (c *RetryingClient) requestForAttempt(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, fmt.Errorf("cannot retry request with non-replayable body")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to reset request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apiKeyTransport adds the API key as a query parameter to every request.
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return t.next.RoundTrip(r)
}
