package crawler

import (
	"context"
	"net/url"
	"sync/atomic"

	"github.com/jambudipa/spider/urlutil"
)

// frontier is the bounded, admission-controlled task queue described in
// spec §4.1/§3. Every URL that reaches a worker has passed, in order:
// the depth bound, normalization, the URL filter, at-most-once admission
// against the SeenSet, robots.txt, and the page cap.
type frontier struct {
	tasks chan CrawlTask

	seen   *VisitedTracker
	filter *urlutil.Filter
	robots *RobotsChecker

	cfg Config

	admitted atomic.Int64 // tasks ever admitted, bounds MaxPages
}

func newFrontier(cfg Config, seen *VisitedTracker, filter *urlutil.Filter, robots *RobotsChecker) *frontier {
	return &frontier{
		tasks:  make(chan CrawlTask, QueueSizeThreshold),
		seen:   seen,
		filter: filter,
		robots: robots,
		cfg:    cfg,
	}
}

// admitResult names why a candidate URL did or didn't enter the
// frontier, feeding directly into a Dropped outcome when it didn't.
type admitResult struct {
	admitted bool
	reason   string
}

// tryAdmit runs the full admission pipeline for one candidate URL
// discovered at depth relative to parentURL. It never blocks on the
// channel beyond ctx's lifetime.
func (f *frontier) tryAdmit(ctx context.Context, raw string, depth int, parentURL string, meta map[string]any) admitResult {
	if f.cfg.MaxDepth > 0 && depth > f.cfg.MaxDepth {
		return admitResult{reason: "depth bound exceeded"}
	}
	// Cheap, non-atomic fast path: skip the normalize/filter/dedupe/robots
	// work below for a candidate that's obviously over cap already. The
	// real, race-free gate is reserveSlot, immediately before enqueue.
	if f.cfg.MaxPages > 0 && f.admitted.Load() >= int64(f.cfg.MaxPages) {
		return admitResult{reason: "page cap reached"}
	}

	var base *url.URL
	if parentURL != "" {
		base, _ = url.Parse(parentURL)
	}

	var canonical string
	if f.cfg.NormalizeURLsForDeduplication {
		n, err := urlutil.Normalize(raw, base, f.cfg.Normalize)
		if err != nil {
			return admitResult{reason: "malformed url"}
		}
		canonical = n.Canonical
	} else {
		canonical = raw
	}

	if f.filter != nil {
		verdict := f.filter.Decide(canonical)
		if !verdict.Follow {
			return admitResult{reason: verdict.Reason}
		}
	}

	if !f.seen.VisitIfNew(canonical) {
		return admitResult{reason: "already visited"}
	}

	if !f.cfg.IgnoreRobotsTxt && f.robots != nil {
		allowed, _ := f.robots.Allowed(ctx, canonical, f.cfg.UserAgent)
		if !allowed {
			return admitResult{reason: "robots.txt disallows"}
		}
	}

	if !f.reserveSlot() {
		return admitResult{reason: "page cap reached"}
	}

	task := CrawlTask{URL: canonical, Depth: depth, Metadata: meta, ParentURL: parentURL}
	select {
	case f.tasks <- task:
		return admitResult{admitted: true}
	case <-ctx.Done():
		f.releaseSlot()
		return admitResult{reason: "engine cancelled"}
	}
}

// reserveSlot atomically claims one of MaxPages admission slots via
// compare-and-swap, so concurrent workers racing past the fast-path
// check above can never together reserve more than MaxPages slots
// (spec §8.3's page-cap invariant, §5's atomic emitted-page counter).
// A reservation that never reaches the sink (ctx cancelled before
// enqueue) must call releaseSlot to give the slot back.
func (f *frontier) reserveSlot() bool {
	if f.cfg.MaxPages <= 0 {
		return true
	}
	for {
		cur := f.admitted.Load()
		if cur >= int64(f.cfg.MaxPages) {
			return false
		}
		if f.admitted.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (f *frontier) releaseSlot() {
	if f.cfg.MaxPages > 0 {
		f.admitted.Add(-1)
	}
}

// acquire pulls the next task, bounded by TaskAcquisitionTimeout so a
// worker never blocks forever waiting on an empty, still-open frontier.
func (f *frontier) acquire(ctx context.Context) (CrawlTask, bool, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, TaskAcquisitionTimeout)
	defer cancel()

	select {
	case task, ok := <-f.tasks:
		return task, ok, nil
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return CrawlTask{}, false, ctx.Err()
		}
		return CrawlTask{}, false, nil
	}
}

func (f *frontier) size() int {
	return len(f.tasks)
}

func (f *frontier) close() {
	close(f.tasks)
}
