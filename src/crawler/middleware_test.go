package crawler

import (
	"context"
	"errors"
	"testing"
)

func TestMiddlewareChain_RequestOrderLastWins(t *testing.T) {
	setUA := func(ua string) RequestMiddleware {
		return func(_ context.Context, task CrawlTask) (CrawlTask, error) {
			if task.Headers == nil {
				task.Headers = make(map[string]string)
			}
			task.Headers["User-Agent"] = ua
			return task, nil
		}
	}
	chain := newMiddlewareChain(
		[]RequestMiddleware{setUA("TestBot/1.0"), setUA("Spider/2.0")},
		nil,
	)

	task, err := chain.runRequest(context.Background(), CrawlTask{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("runRequest() error: %v", err)
	}
	if got := task.Headers["User-Agent"]; got != "Spider/2.0" {
		t.Errorf("User-Agent = %q, want %q", got, "Spider/2.0")
	}
}

func TestMiddlewareChain_ResponseReverseOrder(t *testing.T) {
	var order []string
	record := func(name string) ResponseMiddleware {
		return func(_ context.Context, _ CrawlTask, _ *PageData) error {
			order = append(order, name)
			return nil
		}
	}
	chain := newMiddlewareChain(nil, []ResponseMiddleware{record("A"), record("B")})

	page := &PageData{}
	if err := chain.runResponse(context.Background(), CrawlTask{}, page); err != nil {
		t.Fatalf("runResponse() error: %v", err)
	}
	if len(order) != 2 || order[0] != "B" || order[1] != "A" {
		t.Errorf("execution order = %v, want [B A]", order)
	}
}

func TestMiddlewareChain_RequestSkip(t *testing.T) {
	called := false
	chain := newMiddlewareChain(
		[]RequestMiddleware{
			func(_ context.Context, task CrawlTask) (CrawlTask, error) {
				return task, ErrSkipRequest
			},
			func(_ context.Context, task CrawlTask) (CrawlTask, error) {
				called = true
				return task, nil
			},
		},
		nil,
	)

	_, err := chain.runRequest(context.Background(), CrawlTask{})
	if err != ErrSkipRequest {
		t.Fatalf("expected ErrSkipRequest, got %v", err)
	}
	if called {
		t.Error("expected chain to stop after the skip, but a later stage ran")
	}
}

func TestMiddlewareChain_ResponseSkip(t *testing.T) {
	chain := newMiddlewareChain(nil, []ResponseMiddleware{
		func(_ context.Context, _ CrawlTask, _ *PageData) error {
			return ErrSkipResponse
		},
	})

	err := chain.runResponse(context.Background(), CrawlTask{}, &PageData{})
	if err != ErrSkipResponse {
		t.Fatalf("expected ErrSkipResponse, got %v", err)
	}
}

func TestMiddlewareChain_ErrorWrappedInMiddlewareError(t *testing.T) {
	boom := errors.New("boom")
	chain := newMiddlewareChain(
		[]RequestMiddleware{func(_ context.Context, task CrawlTask) (CrawlTask, error) {
			return task, boom
		}},
		nil,
	)

	_, err := chain.runRequest(context.Background(), CrawlTask{})
	var mwErr *MiddlewareError
	if !errors.As(err, &mwErr) {
		t.Fatalf("expected *MiddlewareError, got %T: %v", err, err)
	}
	if !errors.Is(mwErr.Err, boom) && mwErr.Err != boom {
		t.Errorf("expected wrapped error to be %v, got %v", boom, mwErr.Err)
	}
}

func TestMetadataMiddleware_CopiesStringMetadata(t *testing.T) {
	task := CrawlTask{Metadata: map[string]any{"source": "sitemap", "priority": 5}}
	page := &PageData{}

	if err := metadataMiddleware(context.Background(), task, page); err != nil {
		t.Fatalf("metadataMiddleware() error: %v", err)
	}
	if page.Metadata["source"] != "sitemap" {
		t.Errorf("expected string metadata copied, got %v", page.Metadata)
	}
	if _, ok := page.Metadata["priority"]; ok {
		t.Error("expected non-string metadata to be skipped")
	}
}
