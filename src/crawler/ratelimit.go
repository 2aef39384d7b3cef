package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRateFloor is the minimum per-host rate in requests per second
	// the adaptive booster will settle at, however poorly a host behaves.
	// The fixed politeness floor (politenessGovernor.floorFor) is what
	// actually keeps a crawl polite; this floor only keeps the booster
	// from grinding a struggling host to a near-halt.
	minRateFloor = 5.0

	// maxRateCeiling bounds how aggressively the booster may speed up a
	// consistently fast host.
	maxRateCeiling = 100.0

	// emaAlpha weights a new RTT observation against the running average;
	// 0.2 means a single slow or fast response nudges the average rather
	// than whipsawing it.
	emaAlpha = 0.2

	// recoveryFactor is the per-observation rate increase while a host is
	// responding faster than targetRTT.
	recoveryFactor = 1.1

	// backoffFactor caps how much a single slow observation may cut the
	// rate, so one outlier response doesn't stall the rest of that host's
	// queue.
	backoffFactor = 0.5
)

// AdaptiveLimiter is the RTT-responsive booster layered on top of a
// host's fixed politeness floor (SPEC_FULL §4.4's AdaptiveThrottling
// knob). It tracks an exponential moving average of observed round-trip
// times for one host and tightens or loosens its own rate.Limiter
// accordingly; politenessGovernor.Wait always applies the fixed floor
// first, so this booster can only add delay on top, never remove the
// floor's guarantee.
type AdaptiveLimiter struct {
	mu sync.RWMutex

	limiter     *rate.Limiter
	targetRTT   time.Duration
	emaRTT      time.Duration
	currentRate float64
	disabled    bool
}

// NewAdaptiveLimiter builds a booster seeded at initialRPS (clamped to
// [minRateFloor, maxRateCeiling]), targeting targetRTT as the round-trip
// time it tries to hold a host to.
func NewAdaptiveLimiter(initialRPS int, targetRTT time.Duration) *AdaptiveLimiter {
	seed := clampRateFloat(float64(initialRPS))
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(seed), int(seed)),
		targetRTT:   targetRTT,
		currentRate: seed,
		emaRTT:      targetRTT,
	}
}

// Wait blocks until the booster's current rate admits the next request,
// or ctx is cancelled. Safe for concurrent callers against the same host.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT folds one completed fetch's latency into the EMA and
// retunes the booster's rate: slower than target backs off (capped at
// backoffFactor per step so a single bad response can't crash the rate),
// faster than target recovers gradually (recoveryFactor per step).
// A manual SetRate override (disabled == true) makes this a no-op until
// EnableAdaptation is called.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.disabled {
		return
	}

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))

	speedFactor := float64(a.targetRTT) / float64(a.emaRTT)
	next := a.currentRate * speedFactor
	if speedFactor < 1 {
		if floor := a.currentRate * backoffFactor; next < floor {
			next = floor
		}
	} else {
		next = a.currentRate * recoveryFactor
	}
	next = clampRateFloat(next)

	if math.Abs(next-a.currentRate) > 0.1 {
		a.currentRate = next
		a.limiter.SetLimit(rate.Limit(next))
		a.limiter.SetBurst(int(math.Ceil(next)))
	}
}

// SetRate pins the booster to an explicit rate and disables further
// adaptation, for a caller that wants to override the host's computed
// rate (e.g. a CLI flag pinning throughput for one run).
func (a *AdaptiveLimiter) SetRate(rps int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	clamped := clampRateFloat(float64(rps))
	a.currentRate = clamped
	a.disabled = true
	a.limiter.SetLimit(rate.Limit(clamped))
	a.limiter.SetBurst(int(math.Ceil(clamped)))
}

// EnableAdaptation resumes RTT-driven adjustment after a SetRate override.
func (a *AdaptiveLimiter) EnableAdaptation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disabled = false
}

// CurrentRate returns the booster's current rate in requests per second,
// rounded to the nearest integer for display.
func (a *AdaptiveLimiter) CurrentRate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(math.Round(a.currentRate))
}

// TargetRTT returns the round-trip time the booster tunes toward.
func (a *AdaptiveLimiter) TargetRTT() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.targetRTT
}

// CurrentEMA returns the current exponential moving average of observed
// round-trip times.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emaRTT
}

// Snapshot reports the booster's current rate and RTT average in one
// call, for the health monitor's periodic pressure log (health.go).
func (a *AdaptiveLimiter) Snapshot() (ratePerSecond float64, ema time.Duration) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentRate, a.emaRTT
}

func clampRateFloat(rps float64) float64 {
	if rps < minRateFloor {
		return minRateFloor
	}
	if rps > maxRateCeiling {
		return maxRateCeiling
	}
	return rps
}
