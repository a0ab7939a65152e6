package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
	"unicode/utf8"

	"medparse/internal/domain"
)

// RateLimitError indicates a backend returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Backend    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Backend, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(backend string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Backend:    backend,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// StatusError is a non-2xx response from a backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Backend, e.StatusCode, e.Body)
}

// BackendError carries the backend URL and model a fatal health check failed
// for, so callers can tell users what to fix.
type BackendError struct {
	Backend string
	URL     string
	Model   string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s at %s (model %s): %v", e.Backend, e.URL, e.Model, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Backend, e.URL, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as ErrBackendUnavailable for backend at url.
func Unavailable(backend, url string, err error) *BackendError {
	return &BackendError{Backend: backend, URL: url, Err: fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)}
}

// ModelMissing reports that model is not served by backend at url.
func ModelMissing(backend, url, model string) *BackendError {
	return &BackendError{Backend: backend, URL: url, Model: model, Err: domain.ErrModelNotFound}
}

// Transport classifies a failed round trip to backend at url. Refused
// connections and failed DNS lookups mean the backend is unreachable and
// become ErrBackendUnavailable; timeouts and everything else are returned
// unchanged.
func Transport(backend, url string, err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return err
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return Unavailable(backend, url, err)
	}
	return err
}

// IsTransient reports whether an inference error is worth retrying: timeouts,
// unparseable or schema-violating output, rate limits and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrBackendUnavailable) || errors.Is(err, domain.ErrModelNotFound) {
		return false
	}
	if errors.Is(err, domain.ErrInferenceTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrMalformedOutput) ||
		errors.Is(err, domain.ErrSchemaViolation) {
		return true
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8
// sequence and marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
