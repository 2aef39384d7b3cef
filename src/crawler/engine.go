// Package crawler implements the polite, concurrent crawl engine: a
// bounded frontier, a per-host politeness governor, robots.txt
// enforcement, a worker pool with health monitoring, and a middleware
// pipeline feeding a caller-supplied Sink.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jambudipa/spider/urlutil"
)

// Engine coordinates one crawl run from a set of seeds to completion.
// Construct with New and run once with Run; an Engine is not reusable
// across two Run calls.
type Engine struct {
	cfg Config
	log *zap.Logger

	seen     *VisitedTracker
	filter   *urlutil.Filter
	robots   *RobotsChecker
	governor *politenessGovernor
	fetcher  Fetcher
	chain    *middlewareChain
	sink     Sink

	frontier *frontier
	retry    RetryPolicy
	failures *hostFailureTracker

	events chan<- CrawlEvent

	mu           sync.Mutex
	workers      []*workerHeartbeat
	pagesEmitted int
	pagesDropped int
	pagesFailed  int
}

// New builds an Engine. events may be nil to disable progress reporting;
// fetcher may be nil to use the default HTTPFetcher; sink may be nil to
// default to an in-memory CollectingSink (retrievable via Sink()).
func New(cfg Config, log *zap.Logger, fetcher Fetcher, sink Sink, events chan<- CrawlEvent) (*Engine, error) {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(cfg)
	}
	if sink == nil {
		sink = NewCollectingSink()
	}

	seen, err := NewVisitedTracker()
	if err != nil {
		return nil, fmt.Errorf("create visited tracker: %w", err)
	}

	filter := urlutil.NewFilter(urlutil.FilterConfig{
		AllowedDomains:  cfg.AllowedDomains,
		BlockedDomains:  cfg.BlockedDomains,
		EnabledFamilies: cfg.EnabledExtensionFamilies,
		CustomFilters:   cfg.CustomURLFilters,
	})

	e := &Engine{
		cfg:      cfg,
		log:      log,
		seen:     seen,
		filter:   filter,
		robots:   NewRobotsChecker(),
		governor: newPolitenessGovernor(cfg),
		fetcher: fetcher,
		chain: newMiddlewareChain(
			cfg.RequestMiddlewares,
			append([]ResponseMiddleware{metadataMiddleware}, cfg.ResponseMiddlewares...),
		),
		sink:     sink,
		retry:    DefaultRetryPolicy(),
		failures: newHostFailureTracker(),
		events:   events,
	}
	e.frontier = newFrontier(cfg, seen, filter, e.robots)
	e.workers = make([]*workerHeartbeat, cfg.MaxConcurrentWorkers)
	for i := range e.workers {
		e.workers[i] = newWorkerHeartbeat()
	}

	return e, nil
}

// Sink returns the engine's sink, letting a caller that didn't supply
// one retrieve the default CollectingSink's buffered results after Run.
func (e *Engine) Sink() Sink { return e.sink }

// Run seeds the frontier and drives the worker pool to completion: it
// returns when the frontier is drained and every in-flight task has
// settled, ctx is cancelled, or the sink returns an error.
func (e *Engine) Run(ctx context.Context, seeds []Seed) (Summary, error) {
	start := time.Now()
	defer func() { _ = e.seen.Close() }()

	group, gctx := errgroup.WithContext(ctx)

	var inFlightTasks sync.WaitGroup
	var draining atomicBool

	monitor := newHealthMonitor(e.log, e.cfg, e.frontier.size, func() []*workerHeartbeat {
		e.mu.Lock()
		defer e.mu.Unlock()
		out := make([]*workerHeartbeat, len(e.workers))
		copy(out, e.workers)
		return out
	}, func(slot int64) {
		e.mu.Lock()
		fresh := newWorkerHeartbeat()
		e.workers[slot] = fresh
		e.mu.Unlock()
		group.Go(func() error { return e.runWorker(gctx, fresh, &inFlightTasks, &draining) })
	}, e.failures, e.governor)
	monitorCtx, stopMonitor := context.WithCancel(gctx)
	defer stopMonitor()
	group.Go(func() error {
		monitor.Run(monitorCtx)
		return nil
	})

	for _, seed := range seeds {
		inFlightTasks.Add(1)
		result := e.frontier.tryAdmit(gctx, seed.URL, 0, "", seed.Metadata)
		if !result.admitted {
			inFlightTasks.Done()
			e.recordDrop(seed.URL, result.reason)
		}
	}

	for _, hb := range e.workers {
		hb := hb
		group.Go(func() error { return e.runWorker(gctx, hb, &inFlightTasks, &draining) })
	}

	group.Go(func() error {
		idle := make(chan struct{})
		go func() {
			inFlightTasks.Wait()
			close(idle)
		}()
		// Either every admitted task has settled, or the caller cancelled
		// and we stop waiting on work that will never be consumed.
		select {
		case <-idle:
		case <-gctx.Done():
		}
		draining.Store(true)
		e.frontier.close()
		stopMonitor()
		return nil
	})

	runErr := group.Wait()

	e.mu.Lock()
	summary := Summary{
		PagesEmitted: e.pagesEmitted,
		PagesDropped: e.pagesDropped,
		PagesFailed:  e.pagesFailed,
		Duration:     time.Since(start),
	}
	e.mu.Unlock()

	if runErr != nil {
		var sinkErr *SinkError
		if isSinkError(runErr, &sinkErr) {
			return summary, sinkErr
		}
		return summary, runErr
	}
	return summary, nil
}

// CrawlSingle fetches and processes one URL outside the frontier and
// worker pool: the same robots/governor/middleware/fetch/extract/sink
// path as a pooled task, but with no admission pipeline and no
// discovered-link follow-up (links are reported on the result, not
// queued). Depth is always 0.
func (e *Engine) CrawlSingle(ctx context.Context, rawURL string, meta map[string]any) error {
	defer func() { _ = e.seen.Close() }()

	task := CrawlTask{URL: rawURL, Depth: 0, Metadata: meta}
	host := hostOf(task.URL)

	if !e.cfg.IgnoreRobotsTxt {
		allowed, _ := e.robots.Allowed(ctx, rawURL, e.cfg.UserAgent)
		if !allowed {
			return e.finishSingle(ctx, task, CrawlResult{Depth: 0, Outcome: Dropped{Reason: "robots.txt disallows"}})
		}
	}

	reqTask, err := e.chain.runRequest(ctx, task)
	if err != nil {
		if err == ErrSkipRequest {
			return e.finishSingle(ctx, task, CrawlResult{Depth: 0, Outcome: Dropped{Reason: "middleware skipped request"}})
		}
		return e.finishSingle(ctx, task, CrawlResult{Depth: 0, Outcome: Failed{Kind: err}})
	}
	task = reqTask

	if err := e.governor.Wait(ctx, host); err != nil {
		return nil
	}

	var page PageData
	var fetchErr error
	for attempt := 1; ; attempt++ {
		start := time.Now()
		page, fetchErr = e.fetcher.Fetch(ctx, task)
		e.governor.ObserveRTT(host, time.Since(start))
		if fetchErr == nil || !e.retry.shouldRetry(fetchErr, attempt) {
			break
		}
		select {
		case <-time.After(e.retry.backoffDelay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fetchErr != nil {
		return e.finishSingle(ctx, task, CrawlResult{Depth: 0, Outcome: Failed{Kind: fetchErr}})
	}

	if err := e.chain.runResponse(ctx, task, &page); err != nil {
		if err == ErrSkipResponse {
			return e.finishSingle(ctx, task, CrawlResult{Page: page, Depth: 0, Outcome: Dropped{Reason: "middleware skipped response"}})
		}
		return e.finishSingle(ctx, task, CrawlResult{Page: page, Depth: 0, Outcome: Failed{Kind: err}})
	}

	var links []string
	if extracted, extractErr := ExtractPage(strings.NewReader(page.HTML), mustParseURL(task.URL), e.cfg); extractErr == nil {
		page.Title = extracted.Title
		if page.Metadata == nil {
			page.Metadata = make(map[string]string)
		}
		for k, v := range extracted.Meta {
			page.Metadata[k] = v
		}
		links = extracted.Links
	}

	return e.finishSingle(ctx, task, CrawlResult{
		Page:            page,
		Depth:           0,
		Metadata:        task.Metadata,
		DiscoveredLinks: links,
		Outcome:         Emitted{},
	})
}

// finishSingle mirrors finish's bookkeeping and sink push for
// CrawlSingle, without touching the pooled-run worker/frontier state.
func (e *Engine) finishSingle(ctx context.Context, task CrawlTask, result CrawlResult) error {
	result.URL = task.URL
	result.ParentURL = task.ParentURL
	host := hostOf(task.URL)
	switch result.Outcome.(type) {
	case Emitted:
		e.failures.recordSuccess(host)
	case Failed:
		e.failures.recordFailure(host)
	}
	if err := e.sink.Push(ctx, result); err != nil {
		return &SinkError{Err: err}
	}
	e.emit(CrawlEvent{URL: task.URL, Depth: task.Depth, StatusCode: result.Page.StatusCode, Outcome: outcomeLabel(result.Outcome)})
	return nil
}

// runWorker is a single worker's task loop. It exits cleanly when the
// frontier channel closes, ctx is cancelled, or it is retired by the
// health monitor. inFlight tracks admitted-but-not-yet-settled tasks
// across the whole engine (seeds and discovered links alike), not just
// the task this worker currently holds; its counter is incremented at
// admission time in Run/process so the drain trigger never fires while
// buffered-but-unacquired work remains.
func (e *Engine) runWorker(ctx context.Context, hb *workerHeartbeat, inFlight *sync.WaitGroup, draining *atomicBool) error {
	for {
		if hb.retired.Load() {
			return nil
		}
		task, ok, err := e.frontier.acquire(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if draining.Load() || ctx.Err() != nil {
				return nil
			}
			continue
		}

		hb.touch()
		err = e.process(ctx, task, inFlight)
		inFlight.Done()
		hb.touch()

		if err != nil {
			draining.Store(true)
			return err
		}
	}
}

// process runs one task end to end: politeness wait, fetch, retry
// scheduling, middleware, link extraction and admission, and the sink
// push. Its only returned error is a SinkError, which the caller uses to
// start draining.
func (e *Engine) process(ctx context.Context, task CrawlTask, inFlight *sync.WaitGroup) error {
	host := hostOf(task.URL)

	reqTask, err := e.chain.runRequest(ctx, task)
	if err != nil {
		if err == ErrSkipRequest {
			return e.finish(ctx, task, CrawlResult{Depth: task.Depth, Outcome: Dropped{Reason: "middleware skipped request"}})
		}
		return e.finish(ctx, task, CrawlResult{Depth: task.Depth, Outcome: Failed{Kind: err}})
	}
	task = reqTask

	if err := e.governor.Wait(ctx, host); err != nil {
		return nil
	}

	start := time.Now()
	page, fetchErr := e.fetcher.Fetch(ctx, task)
	e.governor.ObserveRTT(host, time.Since(start))

	if fetchErr != nil {
		return e.handleFetchError(ctx, task, fetchErr, inFlight)
	}

	if err := e.chain.runResponse(ctx, task, &page); err != nil {
		if err == ErrSkipResponse {
			return e.finish(ctx, task, CrawlResult{Page: page, Depth: task.Depth, Outcome: Dropped{Reason: "middleware skipped response"}})
		}
		return e.finish(ctx, task, CrawlResult{Page: page, Depth: task.Depth, Outcome: Failed{Kind: err}})
	}

	extracted, extractErr := ExtractPage(strings.NewReader(page.HTML), mustParseURL(task.URL), e.cfg)
	var links []string
	if extractErr == nil {
		page.Title = extracted.Title
		if page.Metadata == nil {
			page.Metadata = make(map[string]string)
		}
		for k, v := range extracted.Meta {
			page.Metadata[k] = v
		}
		links = extracted.Links
		for _, link := range links {
			inFlight.Add(1)
			result := e.frontier.tryAdmit(ctx, link, task.Depth+1, task.URL, task.Metadata)
			if !result.admitted {
				inFlight.Done()
				e.recordDrop(link, result.reason)
			}
		}
	}

	return e.finish(ctx, task, CrawlResult{
		Page:            page,
		Depth:           task.Depth,
		Metadata:        task.Metadata,
		DiscoveredLinks: links,
		Outcome:         Emitted{},
	})
}

func (e *Engine) handleFetchError(ctx context.Context, task CrawlTask, fetchErr error, inFlight *sync.WaitGroup) error {
	attempt := 1
	if n, ok := task.Metadata["_attempt"].(int); ok {
		attempt = n + 1
	}

	if e.retry.shouldRetry(fetchErr, attempt) {
		delay := e.retry.backoffDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
		meta := cloneMeta(task.Metadata)
		meta["_attempt"] = attempt
		retryTask := CrawlTask{URL: task.URL, Depth: task.Depth, Metadata: meta, ParentURL: task.ParentURL, isRetry: true}
		// The retry is new pending work, tracked independently of the
		// failed attempt this call is unwinding (that one's Done() is
		// still pending in runWorker).
		inFlight.Add(1)
		select {
		case e.frontier.tasks <- retryTask:
		case <-ctx.Done():
			inFlight.Done()
		}
		return nil
	}

	return e.finish(ctx, task, CrawlResult{Depth: task.Depth, Outcome: Failed{Kind: fetchErr}})
}

func (e *Engine) finish(ctx context.Context, task CrawlTask, result CrawlResult) error {
	result.URL = task.URL
	result.ParentURL = task.ParentURL
	host := hostOf(task.URL)
	switch result.Outcome.(type) {
	case Emitted:
		e.failures.recordSuccess(host)
	case Failed:
		e.failures.recordFailure(host)
	}

	e.mu.Lock()
	switch result.Outcome.(type) {
	case Emitted:
		e.pagesEmitted++
	case Failed:
		e.pagesFailed++
	case Dropped:
		e.pagesDropped++
	}
	emitted, dropped, failed := e.pagesEmitted, e.pagesDropped, e.pagesFailed
	active := e.activeWorkersLocked()
	e.mu.Unlock()

	if err := e.sink.Push(ctx, result); err != nil {
		return &SinkError{Err: err}
	}

	e.emit(CrawlEvent{
		URL:           task.URL,
		Depth:         task.Depth,
		StatusCode:    result.Page.StatusCode,
		Outcome:       outcomeLabel(result.Outcome),
		PagesEmitted:  emitted,
		PagesDropped:  dropped,
		PagesFailed:   failed,
		FrontierSize:  e.frontier.size(),
		ActiveWorkers: active,
	})
	return nil
}

// activeWorkersLocked counts non-retired workers; callers must hold e.mu.
func (e *Engine) activeWorkersLocked() int {
	n := 0
	for _, w := range e.workers {
		if w != nil && !w.retired.Load() {
			n++
		}
	}
	return n
}

func (e *Engine) recordDrop(rawURL, reason string) {
	e.mu.Lock()
	e.pagesDropped++
	e.mu.Unlock()
	e.emit(CrawlEvent{URL: rawURL, Outcome: "dropped", Error: reason})
}

func (e *Engine) emit(evt CrawlEvent) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- evt:
	default:
	}
}

func outcomeLabel(o TaskOutcome) string {
	switch o.(type) {
	case Emitted:
		return "emitted"
	case Failed:
		return "failed"
	default:
		return "dropped"
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

func mustParseURL(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &url.URL{}
	}
	return u
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func isSinkError(err error, target **SinkError) bool {
	se, ok := err.(*SinkError)
	if !ok {
		return false
	}
	*target = se
	return true
}

// atomicBool is a tiny cancellation flag shared between the worker pool
// and the drain coordinator.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) Store(v bool) {
	b.mu.Lock()
	b.v = v
	b.mu.Unlock()
}

func (b *atomicBool) Load() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}
