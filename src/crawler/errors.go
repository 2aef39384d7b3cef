package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// MalformedURLError reports a task whose URL failed normalization.
type MalformedURLError struct {
	URL string
	Err error
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed url %q: %v", e.URL, e.Err)
}

func (e *MalformedURLError) Unwrap() error { return e.Err }

// FilteredURLError reports a task rejected by the URL filter.
type FilteredURLError struct {
	URL    string
	Reason string
}

func (e *FilteredURLError) Error() string {
	return fmt.Sprintf("filtered url %q: %s", e.URL, e.Reason)
}

// RobotsDeniedError reports a task disallowed by robots.txt.
type RobotsDeniedError struct {
	URL string
}

func (e *RobotsDeniedError) Error() string {
	return fmt.Sprintf("robots.txt disallows %q", e.URL)
}

// TransientFetchError wraps a retryable fetch failure (network error,
// timeout, 5xx).
type TransientFetchError struct {
	URL string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch error for %q: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// PermanentFetchError is the terminal state of a fetch that exhausted
// retries or failed with a non-retryable status.
type PermanentFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *PermanentFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("permanent fetch error for %q: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("permanent fetch error for %q: %v", e.URL, e.Err)
}

func (e *PermanentFetchError) Unwrap() error { return e.Err }

// MiddlewareError reports a task dropped by a middleware failure.
type MiddlewareError struct {
	Stage string
	Err   error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware error in %s: %v", e.Stage, e.Err)
}

func (e *MiddlewareError) Unwrap() error { return e.Err }

// SinkError propagates a failure from the caller-supplied sink; unlike
// every other task-scoped error, this one transitions the engine to
// Draining (spec §7).
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: %v", e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// ErrEngineCancelled signals a normal, caller-requested shutdown. It is
// not surfaced to the caller as a failure.
var ErrEngineCancelled = errors.New("engine cancelled")

// isRetryableStatus reports whether an HTTP status code indicates a
// transient failure worth retrying (429 and 5xx).
func isRetryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// isRetryableError classifies network-level errors as transient,
// mirroring the teacher's errors.As-based detection.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
