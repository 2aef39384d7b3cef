package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes the page results as a formatted JSON array to the
// writer. Uses flat array format (not wrapped with metadata) for simpler
// CI integration.
func WriteJSON(w io.Writer, pages []PageResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the page results as CSV to the writer.
// Always includes a header row, even if there are no pages.
// Column order: url, depth, status_code, outcome, error_type, source_url
func WriteCSV(w io.Writer, pages []PageResult) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "depth", "status_code", "outcome", "error_type", "source_url"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, page := range pages {
		record := []string{
			page.URL,
			strconv.Itoa(page.Depth),
			statusCodeStr(page.StatusCode),
			page.Outcome,
			string(page.ErrorCategory),
			page.SourceURL,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", page.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
