package crawler

import (
	"context"
	"sync"
)

// Sink receives a CrawlResult for every task a worker settles, whatever
// its Outcome (Emitted, Dropped or Failed). A Sink error
// transitions the engine into Draining: in-flight tasks finish, the
// frontier stops admitting new ones, and Run returns the sink's error
// wrapped in a SinkError (spec §7).
type Sink interface {
	Push(ctx context.Context, result CrawlResult) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, result CrawlResult) error

func (f SinkFunc) Push(ctx context.Context, result CrawlResult) error { return f(ctx, result) }

// CollectingSink accumulates every result in memory; callers that want a
// single final report (spec's result package) use this rather than
// streaming elsewhere.
type CollectingSink struct {
	mu      sync.Mutex
	results []CrawlResult
}

// NewCollectingSink returns a Sink that buffers every pushed result.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (s *CollectingSink) Push(_ context.Context, result CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// Results returns a snapshot copy of everything collected so far.
func (s *CollectingSink) Results() []CrawlResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CrawlResult, len(s.results))
	copy(out, s.results)
	return out
}
