package crawler

import "time"

// RetryPolicy configures the exponential backoff applied between a
// failed task and its re-derived retry task (spec §3: a retry is always
// a new CrawlTask, never the same task revived).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy mirrors the frozen operational constants of spec §6.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: FetchRetryCount,
		BaseDelay:  retryBaseDelay,
		MaxDelay:   retryMaxDelay,
	}
}

// backoffDelay returns the wait before retry attempt n (1-indexed),
// doubling from BaseDelay and capped at MaxDelay.
func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// shouldRetry reports whether a fetch error warrants a retry task, and
// classifies it into the taxonomy's transient/permanent split. A
// transient error is retried up to MaxRetries; a permanent one never is.
func (p RetryPolicy) shouldRetry(err error, attemptsSoFar int) bool {
	if attemptsSoFar > p.MaxRetries {
		return false
	}
	switch err.(type) {
	case *TransientFetchError:
		return true
	default:
		return false
	}
}
