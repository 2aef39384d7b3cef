// Package tui provides the Bubble Tea terminal UI for spider, displaying
// live crawl progress and a styled summary of results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jambudipa/spider/crawler"
	"github.com/jambudipa/spider/result"
)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	engine *crawler.Engine
	sink   *crawler.CollectingSink
	seeds  []crawler.Seed

	spinner    spinner.Model
	progressCh <-chan crawler.CrawlEvent

	pagesEmitted  int
	pagesDropped  int
	pagesFailed   int
	frontierSize  int
	activeWorkers int
	current       string

	quitting bool
	done     bool
	result   *result.Result
	err      error
	width    int
}

// NewModel creates a TUI model wired to the given engine, seeds and
// progress channel. sink must be the CollectingSink the engine was
// constructed with, so the model can assemble the final Result once the
// run completes.
func NewModel(ctx context.Context, cancel context.CancelFunc, engine *crawler.Engine, sink *crawler.CollectingSink, seeds []crawler.Seed, progressCh <-chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		engine:     engine,
		sink:       sink,
		seeds:      seeds,
		spinner:    spin,
		progressCh: progressCh,
	}
}

// Init starts the spinner, crawl, and progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.progressCh))
}

// startCrawl returns a tea.Cmd that runs the engine and sends CrawlDoneMsg.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		summary, err := m.engine.Run(m.ctx, m.seeds)
		if err != nil {
			err = fmt.Errorf("crawl: %w", err)
		}
		return CrawlDoneMsg{Summary: summary, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		m.current = msg.URL
		m.pagesEmitted = msg.PagesEmitted
		m.pagesDropped = msg.PagesDropped
		m.pagesFailed = msg.PagesFailed
		m.frontierSize = msg.FrontierSize
		m.activeWorkers = msg.ActiveWorkers
		return m, waitForProgress(m.progressCh)

	case CrawlDoneMsg:
		m.done = true
		m.err = msg.Err
		if m.sink != nil {
			m.result = result.Build(m.sink.Results(), msg.Summary)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		return RenderSummary(m.result)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	return fmt.Sprintf("%s Crawling... emitted %d, dropped %d, failed %d, frontier %d, workers %d\n%s\n",
		m.spinner.View(), m.pagesEmitted, m.pagesDropped, m.pagesFailed, m.frontierSize, m.activeWorkers,
		dimStyle.Render("  "+m.current))
}

// HasFailures reports whether the crawl emitted any failed page.
func (m Model) HasFailures() bool {
	return m.result.HasFailures()
}

// GetResult returns the crawl result for output formatting.
func (m Model) GetResult() *result.Result {
	return m.result
}
