package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/mmcdole/gofeed"
	"google.golang.org/api/googleapi"
)

// Sentinel errors for upstream failures. Use errors.Is to test for them; the
// concrete error is usually an *APIError carrying the status and reason.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrServerFailure     = errors.New("upstream server failure")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrRejected          = errors.New("request rejected")
	ErrMalformedResponse = errors.New("malformed response")

	// ErrChannelNotFound is returned when a channel lookup yields no items.
	ErrChannelNotFound = fmt.Errorf("channel %w", ErrNotFound)

	// ErrUnavailable signals that no API key is configured. It is never
	// surfaced by the aggregator; callers only use it to short-circuit.
	ErrUnavailable = errors.New("upstream unavailable: no API key configured")
)

// Kind classifies an upstream failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindRateLimited
	KindServer
	KindQuota
	KindForbidden
	KindNotFound
	KindRejected
	KindMalformed
)

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetworkFailure
	case KindRateLimited:
		return ErrRateLimited
	case KindServer:
		return ErrServerFailure
	case KindQuota:
		return ErrQuotaExceeded
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindRejected:
		return ErrRejected
	default:
		return ErrMalformedResponse
	}
}

// String returns the sentinel message for the kind.
func (k Kind) String() string {
	return k.sentinel().Error()
}

// Retryable reports whether the retry policy retries this kind of failure.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindRateLimited || k == KindServer
}

// APIError is a classified upstream failure.
type APIError struct {
	Kind       Kind
	StatusCode int
	Reason     string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *APIError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// KindForStatus maps an HTTP status (and optional upstream reason) to a Kind.
// It returns 0 for 2xx statuses.
func KindForStatus(status int, reason string) Kind {
	switch {
	case status >= 200 && status < 300:
		return 0
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status == http.StatusForbidden && quotaReasons[reason]:
		return KindQuota
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	default:
		return KindRejected
	}
}

// Classify converts a raw error from the API client, the feed parser or the
// transport into an *APIError. Context errors and already classified errors
// are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		reason := ""
		if len(gErr.Errors) > 0 {
			reason = gErr.Errors[0].Reason
		}
		return &APIError{Kind: KindForStatus(gErr.Code, reason), StatusCode: gErr.Code, Reason: reason, Err: err}
	}

	var feedErr gofeed.HTTPError
	if errors.As(err, &feedErr) {
		return &APIError{Kind: KindForStatus(feedErr.StatusCode, ""), StatusCode: feedErr.StatusCode, Err: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &APIError{Kind: KindNetwork, Err: err}
	}

	return &APIError{Kind: KindMalformed, Err: err}
}

// IsRetryable reports whether err belongs to a retryable class.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(Classify(err), &apiErr) {
		return apiErr.Kind.Retryable()
	}
	return false
}
