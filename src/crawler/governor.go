package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// politenessGovernor enforces a minimum inter-request delay per host
// (spec §4.4). Each host gets its own rate.Limiter sized so bursts of 1
// request are allowed but sustained throughput is capped at one request
// per RequestDelayMs; when AdaptiveThrottling is enabled an
// AdaptiveLimiter layers on top and may only tighten the floor, never
// loosen below it.
type politenessGovernor struct {
	mu       sync.Mutex
	perHost  map[string]*rate.Limiter
	adaptive map[string]*AdaptiveLimiter

	delay          time.Duration
	useAdaptive    bool
	targetRTT      time.Duration
}

func newPolitenessGovernor(cfg Config) *politenessGovernor {
	return &politenessGovernor{
		perHost:     make(map[string]*rate.Limiter),
		adaptive:    make(map[string]*AdaptiveLimiter),
		delay:       cfg.requestDelay(),
		useAdaptive: cfg.AdaptiveThrottling,
		targetRTT:   2 * time.Second,
	}
}

// Wait blocks the calling goroutine until host's floor and, if enabled,
// adaptive booster both permit the next request.
func (g *politenessGovernor) Wait(ctx context.Context, host string) error {
	floor := g.floorFor(host)
	if err := floor.Wait(ctx); err != nil {
		return err
	}
	if !g.useAdaptive {
		return nil
	}
	return g.adaptiveFor(host).Wait(ctx)
}

// ObserveRTT feeds a completed request's latency to the adaptive
// booster for host, a no-op when adaptive throttling is disabled.
func (g *politenessGovernor) ObserveRTT(host string, rtt time.Duration) {
	if !g.useAdaptive {
		return
	}
	g.adaptiveFor(host).ObserveRTT(rtt)
}

func (g *politenessGovernor) floorFor(host string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.perHost[host]
	if !ok {
		perSecond := rate.Every(g.delay)
		if g.delay <= 0 {
			perSecond = rate.Inf
		}
		l = rate.NewLimiter(perSecond, 1)
		g.perHost[host] = l
	}
	return l
}

func (g *politenessGovernor) adaptiveFor(host string) *AdaptiveLimiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.adaptive[host]
	if !ok {
		initial := int(time.Second / g.delay)
		if initial < 1 {
			initial = 1
		}
		a = NewAdaptiveLimiter(initial, g.targetRTT)
		g.adaptive[host] = a
	}
	return a
}

// adaptiveSnapshots reports every host's current booster rate and RTT
// average, for the health monitor's periodic pressure log. Empty when
// adaptive throttling is disabled.
func (g *politenessGovernor) adaptiveSnapshots() map[string]adaptiveSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.useAdaptive || len(g.adaptive) == 0 {
		return nil
	}
	out := make(map[string]adaptiveSnapshot, len(g.adaptive))
	for host, a := range g.adaptive {
		rps, ema := a.Snapshot()
		out[host] = adaptiveSnapshot{ratePerSecond: rps, ema: ema}
	}
	return out
}

type adaptiveSnapshot struct {
	ratePerSecond float64
	ema           time.Duration
}
