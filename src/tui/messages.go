package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jambudipa/spider/crawler"
)

// CrawlProgressMsg reports the engine's running counters after one
// processed task (crawler.CrawlEvent).
type CrawlProgressMsg struct {
	URL           string
	Depth         int
	StatusCode    int
	Outcome       string
	PagesEmitted  int
	PagesDropped  int
	PagesFailed   int
	FrontierSize  int
	ActiveWorkers int
}

// CrawlDoneMsg signals that Engine.Run has returned.
type CrawlDoneMsg struct {
	Summary crawler.Summary
	Err     error
}

// waitForProgress returns a tea.Cmd that reads one event from the
// progress channel. When the channel closes, it returns a nil message,
// which Update ignores, so the view keeps its last known counters; the
// actual completion signal comes from startCrawl's CrawlDoneMsg.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CrawlProgressMsg{
			URL:           evt.URL,
			Depth:         evt.Depth,
			StatusCode:    evt.StatusCode,
			Outcome:       evt.Outcome,
			PagesEmitted:  evt.PagesEmitted,
			PagesDropped:  evt.PagesDropped,
			PagesFailed:   evt.PagesFailed,
			FrontierSize:  evt.FrontierSize,
			ActiveWorkers: evt.ActiveWorkers,
		}
	}
}
