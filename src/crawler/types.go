package crawler

import (
	"net/http"
	"time"
)

// Seed is a caller-supplied starting point for a crawl.
type Seed struct {
	URL      string
	Metadata map[string]any
}

// CrawlTask is a unit of crawl work, created at enqueue and consumed
// exactly once by a worker (spec §3).
type CrawlTask struct {
	URL       string
	Depth     int
	Metadata  map[string]any
	ParentURL string

	// Headers holds outbound request headers set or overridden by
	// request middleware (spec §4.6); the fetcher applies them after its
	// own defaults (e.g. User-Agent) so the last-registered middleware
	// wins.
	Headers map[string]string

	// isRetry marks a task re-derived from a failed one; it is never the
	// same task revived, per spec §3's "retry is a new task" rule.
	isRetry bool
}

// PageData is the invariant snapshot of a fetched page (spec §3).
type PageData struct {
	URL              string
	StatusCode       int
	Headers          http.Header
	HTML             string
	Title            string
	Metadata         map[string]string
	FetchedAt        time.Time
	ScrapeDurationMs int64
	Depth            int
}

// Summary aggregates the outcome of one Run call.
type Summary struct {
	PagesEmitted int
	PagesDropped int
	PagesFailed  int
	Duration     time.Duration
}

// CrawlResult is what the sink receives for each processed task.
type CrawlResult struct {
	// URL is the task's target URL, set even when the task never reached
	// a successful fetch (Page.URL is only populated on a successful
	// fetch, and may differ from URL after redirects).
	URL             string
	Page            PageData
	Depth           int
	Metadata        map[string]any
	ParentURL       string
	DiscoveredLinks []string
	Outcome         TaskOutcome
}

// TaskOutcome is the sum type of spec §9: a task is emitted, dropped for
// a reason, or failed with a classified error kind. The implementations
// are Emitted, Dropped and Failed; callers tell them apart with a type
// switch.
type TaskOutcome interface {
	outcome()
}

// Emitted marks a task whose CrawlResult was pushed to the sink.
type Emitted struct{}

func (Emitted) outcome() {}

// Dropped marks a task that never reached the sink.
type Dropped struct {
	Reason string
}

func (Dropped) outcome() {}

// Failed marks a task whose terminal state is an error kind.
type Failed struct {
	Kind error
}

func (Failed) outcome() {}
