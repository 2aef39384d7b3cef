package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// workerHeartbeat tracks a single worker's last activity time and the
// generation it belongs to. A worker that stops updating lastActiveNano
// for longer than StaleWorkerThreshold is considered wedged; the engine
// bumps generation and starts a replacement in its place (spec §4.8).
type workerHeartbeat struct {
	lastActiveNano atomic.Int64
	generation     atomic.Int64
	retired        atomic.Bool
}

func newWorkerHeartbeat() *workerHeartbeat {
	h := &workerHeartbeat{}
	h.touch()
	return h
}

func (h *workerHeartbeat) touch() {
	h.lastActiveNano.Store(time.Now().UnixNano())
}

func (h *workerHeartbeat) staleSince() time.Duration {
	last := time.Unix(0, h.lastActiveNano.Load())
	return time.Since(last)
}

// healthMonitor runs the periodic sweeps described in spec §4.8: stale
// worker detection, host failure-rate tracking, and queue/memory
// pressure logging. It owns no mutable crawl state directly; it reads
// through the accessors supplied by the engine and logs through the
// given logger.
type healthMonitor struct {
	log      *zap.Logger
	mem      *MemoryWatcher
	heights  func() int // current frontier depth/size accessor
	workers  func() []*workerHeartbeat
	restart  func(slot int64) // replaces the worker at this index
	failures *hostFailureTracker
	governor *politenessGovernor
}

func newHealthMonitor(log *zap.Logger, cfg Config, queueSize func() int, workers func() []*workerHeartbeat, restart func(int64), failures *hostFailureTracker, governor *politenessGovernor) *healthMonitor {
	return &healthMonitor{
		log:      log,
		mem:      NewMemoryWatcher(cfg.MemoryThresholdBytes),
		heights:  queueSize,
		workers:  workers,
		restart:  restart,
		failures: failures,
		governor: governor,
	}
}

// Run blocks until ctx is cancelled, ticking the health/failure sweeps at
// their respective intervals.
func (m *healthMonitor) Run(ctx context.Context) {
	healthTicker := time.NewTicker(HealthCheckInterval)
	defer healthTicker.Stop()
	failureTicker := time.NewTicker(FailureDetectorInterval)
	defer failureTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-healthTicker.C:
			m.checkWorkers()
			m.checkPressure()
		case <-failureTicker.C:
			m.failures.sweep(m.log)
		}
	}
}

func (m *healthMonitor) checkWorkers() {
	for i, w := range m.workers() {
		if w == nil {
			continue
		}
		if w.retired.Load() {
			continue
		}
		if stale := w.staleSince(); stale > StaleWorkerThreshold {
			w.retired.Store(true)
			gen := w.generation.Add(1)
			m.log.Warn("worker exceeded stale threshold, restarting",
				zap.Int("worker_index", i),
				zap.Duration("idle", stale),
				zap.Int64("generation", gen),
			)
			m.restart(int64(i))
		}
	}
}

func (m *healthMonitor) checkPressure() {
	if size := m.heights(); size > QueueSizeThreshold {
		m.log.Warn("frontier size exceeds threshold",
			zap.Int("queue_size", size),
			zap.Int("threshold", QueueSizeThreshold),
		)
	}
	if pct, level := m.mem.Check(); level != ThrottleNormal {
		m.log.Warn("memory pressure detected",
			zap.Float64("used_percent", pct),
			zap.Int("throttle_level", int(level)),
		)
	}
	for host, snap := range m.governor.adaptiveSnapshots() {
		m.log.Debug("adaptive throttle state",
			zap.String("host", host),
			zap.Float64("rate_per_second", snap.ratePerSecond),
			zap.Duration("ema_rtt", snap.ema),
		)
	}
}

// hostFailureTracker counts consecutive permanent-failure outcomes per
// host so the monitor can flag a host that is consistently failing
// rather than just logging each failure in isolation.
type hostFailureTracker struct {
	mu    sync.Mutex
	fails map[string]int
}

func newHostFailureTracker() *hostFailureTracker {
	return &hostFailureTracker{fails: make(map[string]int)}
}

func (t *hostFailureTracker) recordFailure(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fails[host]++
}

func (t *hostFailureTracker) recordSuccess(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fails, host)
}

const hostFailureLogThreshold = 5

func (t *hostFailureTracker) sweep(log *zap.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for host, count := range t.fails {
		if count >= hostFailureLogThreshold {
			log.Warn("host failing consistently", zap.String("host", host), zap.Int("consecutive_failures", count))
		}
	}
}
