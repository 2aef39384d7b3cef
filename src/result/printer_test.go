package result

import (
	"bytes"
	"testing"
	"time"
)

func TestPrintResults_NoFailures(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{
		Stats: CrawlStats{PagesEmitted: 10, Duration: time.Second},
	}

	PrintResults(&buf, r)

	got := buf.String()
	want := "No failed or dropped pages.\nEmitted 10, dropped 0, failed 0 (1s)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintResults_WithFailures(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{
		Pages: []PageResult{
			{URL: "http://example.com/dead", StatusCode: 404, Outcome: "failed", SourceURL: "http://example.com/"},
			{URL: "http://example.com/fail", Reason: "connection refused", Outcome: "failed", SourceURL: "http://example.com/about"},
			{URL: "http://example.com/ok", Outcome: "emitted"},
		},
		Stats: CrawlStats{PagesEmitted: 1, PagesFailed: 2, Duration: 5 * time.Second},
	}

	PrintResults(&buf, r)

	got := buf.String()

	if !bytes.Contains([]byte(got), []byte("Failed/Dropped Pages:")) {
		t.Error("missing 'Failed/Dropped Pages:' header")
	}
	if !bytes.Contains([]byte(got), []byte("URL: http://example.com/dead")) {
		t.Error("missing first page URL")
	}
	if !bytes.Contains([]byte(got), []byte("Status: 404")) {
		t.Error("missing status code for first page")
	}
	if !bytes.Contains([]byte(got), []byte("Found on: http://example.com/")) {
		t.Error("missing source url for first page")
	}
	if !bytes.Contains([]byte(got), []byte("URL: http://example.com/fail")) {
		t.Error("missing second page URL")
	}
	if !bytes.Contains([]byte(got), []byte("Reason: connection refused")) {
		t.Error("missing reason for second page")
	}
	if bytes.Contains([]byte(got), []byte("example.com/ok")) {
		t.Error("emitted page should not be listed")
	}
	if !bytes.Contains([]byte(got), []byte("Emitted 1, dropped 0, failed 2")) {
		t.Error("missing or incorrect summary line")
	}
}
