package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jambudipa/spider/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// outcomeOrder defines the display order for non-emitted pages (most to
// least actionable).
var outcomeOrder = []string{"failed", "dropped"}

// categoryOrder defines the display order for error categories within
// the "failed" group.
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryRedirectLoop,
	result.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of a crawl Result.
func RenderSummary(res *result.Result) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	problems := make([]result.PageResult, 0)
	for _, p := range res.Pages {
		if p.Outcome != "emitted" {
			problems = append(problems, p)
		}
	}

	if len(problems) == 0 {
		builder.WriteString(successStyle.Render("No failed or dropped pages!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"Emitted %d pages in %s",
			res.Stats.PagesEmitted,
			res.Stats.Duration.Round(1_000_000), // round to ms
		)))
		builder.WriteString("\n")
		return builder.String()
	}

	for _, outcome := range outcomeOrder {
		renderOutcomeGroup(&builder, outcome, problems)
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Emitted %d, dropped %d, failed %d (%s)",
		res.Stats.PagesEmitted,
		res.Stats.PagesDropped,
		res.Stats.PagesFailed,
		res.Stats.Duration.Round(1_000_000),
	)))
	builder.WriteString("\n")

	return builder.String()
}

func renderOutcomeGroup(builder *strings.Builder, outcome string, pages []result.PageResult) {
	if outcome == "failed" {
		grouped := make(map[result.ErrorCategory][]result.PageResult)
		for _, p := range pages {
			if p.Outcome != "failed" {
				continue
			}
			cat := p.ErrorCategory
			if cat == "" {
				cat = result.CategoryUnknown
			}
			grouped[cat] = append(grouped[cat], p)
		}
		for _, cat := range categoryOrder {
			group, ok := grouped[cat]
			if !ok || len(group) == 0 {
				continue
			}
			builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(group))))
			builder.WriteString("\n")
			builder.WriteString(renderTable(group))
			builder.WriteString("\n\n")
		}
		return
	}

	var dropped []result.PageResult
	for _, p := range pages {
		if p.Outcome == "dropped" {
			dropped = append(dropped, p)
		}
	}
	if len(dropped) == 0 {
		return
	}
	builder.WriteString(categoryStyle.Render(fmt.Sprintf("## Dropped (%d)", len(dropped))))
	builder.WriteString("\n")
	builder.WriteString(renderTable(dropped))
	builder.WriteString("\n\n")
}

func renderTable(pages []result.PageResult) string {
	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		status := fmt.Sprintf("%d", p.StatusCode)
		if p.Reason != "" {
			status = p.Reason
		}
		rows = append(rows, []string{p.URL, status, p.SourceURL})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("URL", "Status", "Found On").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...).
		Render()
}
