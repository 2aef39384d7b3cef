package result

import (
	"fmt"
	"io"
)

// PrintResults writes failed/dropped page details and a summary to w.
func PrintResults(w io.Writer, res *Result) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	var problems []PageResult
	for _, p := range res.Pages {
		if p.Outcome != "emitted" {
			problems = append(problems, p)
		}
	}

	if len(problems) == 0 {
		writef("No failed or dropped pages.\n")
	} else {
		writef("Failed/Dropped Pages:\n")
		for i, p := range problems {
			writef("  URL: %s\n", p.URL)
			if p.Reason != "" {
				writef("  Reason: %s\n", p.Reason)
			} else if p.StatusCode != 0 {
				writef("  Status: %d\n", p.StatusCode)
			}
			if p.SourceURL != "" {
				writef("  Found on: %s\n", p.SourceURL)
			}
			if i < len(problems)-1 {
				writef("\n")
			}
		}
	}
	writef("Emitted %d, dropped %d, failed %d (%s)\n",
		res.Stats.PagesEmitted, res.Stats.PagesDropped, res.Stats.PagesFailed, res.Stats.Duration.Round(1_000_000))
}
