package crawler

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.MaxRetries != FetchRetryCount {
		t.Errorf("MaxRetries = %d, want %d", policy.MaxRetries, FetchRetryCount)
	}
	if policy.BaseDelay != retryBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", policy.BaseDelay, retryBaseDelay)
	}
	if policy.MaxDelay != retryMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", policy.MaxDelay, retryMaxDelay)
	}
}

func TestRetryPolicy_BackoffDoublesAndCaps(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond}, // would be 800ms, capped
		{5, 500 * time.Millisecond},
	}
	for _, c := range cases {
		if got := policy.backoffDelay(c.attempt); got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	transient := &TransientFetchError{URL: "https://example.com", Err: errors.New("boom")}
	permanent := &PermanentFetchError{URL: "https://example.com", Status: 404}

	if !policy.shouldRetry(transient, 1) {
		t.Error("expected retry for a transient error within MaxRetries")
	}
	if policy.shouldRetry(transient, 3) {
		t.Error("expected no retry once attempts exceed MaxRetries")
	}
	if policy.shouldRetry(permanent, 1) {
		t.Error("expected no retry for a permanent error")
	}
}

func TestIsRetryableStatus(t *testing.T) {
	cases := map[int]bool{
		200: false,
		404: false,
		429: true,
		500: true,
		503: true,
	}
	for status, want := range cases {
		if got := isRetryableStatus(status); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
