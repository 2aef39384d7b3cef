// Package result provides CLI-facing types and output writers summarizing
// a crawl engine run: one PageResult per processed task plus aggregate
// CrawlStats, independent of how the crawl was driven (TUI or headless).
package result

import (
	"time"

	"github.com/jambudipa/spider/crawler"
)

// PageResult is a flattened, CLI-friendly view of one crawler.CrawlResult.
type PageResult struct {
	URL           string        `json:"url"`                   // task's target URL
	FinalURL      string        `json:"final_url,omitempty"`   // fetched URL after redirects, if fetched
	Depth         int           `json:"depth"`
	StatusCode    int           `json:"status_code,omitempty"` // HTTP status code (0 if never fetched)
	Outcome       string        `json:"outcome"`               // "emitted", "dropped", or "failed"
	Reason        string        `json:"reason,omitempty"`      // drop reason, or the failure's error message
	ErrorCategory ErrorCategory `json:"error_type,omitempty"`
	SourceURL     string        `json:"source_url,omitempty"` // the page this URL was discovered on
	LinksFound    int           `json:"links_found"`
}

// CrawlStats mirrors crawler.Summary in the CLI's output shape.
type CrawlStats struct {
	PagesEmitted int           `json:"pages_emitted"`
	PagesDropped int           `json:"pages_dropped"`
	PagesFailed  int           `json:"pages_failed"`
	Duration     time.Duration `json:"duration"`
}

// Result is the complete output of a crawl run, ready for JSON/CSV
// encoding or terminal rendering.
type Result struct {
	Pages []PageResult `json:"pages"`
	Stats CrawlStats   `json:"stats"`
}

// Build flattens a slice of engine results and its run Summary into a
// Result. It never fails: every CrawlResult maps to exactly one PageResult.
func Build(results []crawler.CrawlResult, summary crawler.Summary) *Result {
	pages := make([]PageResult, 0, len(results))
	for _, r := range results {
		pages = append(pages, fromCrawlResult(r))
	}
	return &Result{
		Pages: pages,
		Stats: CrawlStats{
			PagesEmitted: summary.PagesEmitted,
			PagesDropped: summary.PagesDropped,
			PagesFailed:  summary.PagesFailed,
			Duration:     summary.Duration,
		},
	}
}

func fromCrawlResult(r crawler.CrawlResult) PageResult {
	pr := PageResult{
		URL:        r.URL,
		Depth:      r.Depth,
		StatusCode: r.Page.StatusCode,
		SourceURL:  r.ParentURL,
		LinksFound: len(r.DiscoveredLinks),
	}
	if r.Page.URL != "" {
		pr.FinalURL = r.Page.URL
	}

	switch outcome := r.Outcome.(type) {
	case crawler.Emitted:
		pr.Outcome = "emitted"
	case crawler.Dropped:
		pr.Outcome = "dropped"
		pr.Reason = outcome.Reason
	case crawler.Failed:
		pr.Outcome = "failed"
		if outcome.Kind != nil {
			pr.Reason = outcome.Kind.Error()
		}
		pr.ErrorCategory = ClassifyError(outcome.Kind, r.Page.StatusCode, false)
	}
	return pr
}

// HasFailures reports whether the result contains any failed page.
func (r *Result) HasFailures() bool {
	return r != nil && r.Stats.PagesFailed > 0
}
