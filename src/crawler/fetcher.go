package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves a single page. The engine calls it once per attempt;
// retry scheduling lives above it in the engine's task loop, not inside
// the fetcher, so a Fetcher can stay a thin, swappable transport shim
// (spec §6 lists this as the engine's sole required external interface
// besides Sink).
type Fetcher interface {
	Fetch(ctx context.Context, task CrawlTask) (PageData, error)
}

// HTTPFetcher is the default Fetcher: a plain http.Client with a bounded
// redirect chain, a fixed per-request timeout, and the configured
// User-Agent header on every request (spec §4.6).
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	redirectCap int
}

// NewHTTPFetcher builds an HTTPFetcher from the engine configuration.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	redirectCap := cfg.RedirectCap
	f := &HTTPFetcher{
		userAgent:   cfg.UserAgent,
		redirectCap: redirectCap,
	}
	f.client = &http.Client{
		Timeout: FetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !cfg.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= redirectCap {
				return fmt.Errorf("stopped after %d redirects", redirectCap)
			}
			return nil
		},
	}
	return f
}

// Fetch performs a single GET, classifying failures per spec §7: network
// and timeout errors and 429/5xx responses become TransientFetchError,
// everything else (4xx, read failures) becomes PermanentFetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, task CrawlTask) (PageData, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return PageData{}, &PermanentFetchError{URL: task.URL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range task.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return PageData{}, ErrEngineCancelled
		}
		if isRetryableError(err) {
			return PageData{}, &TransientFetchError{URL: task.URL, Err: err}
		}
		return PageData{}, &PermanentFetchError{URL: task.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if isRetryableStatus(resp.StatusCode) {
		return PageData{}, &TransientFetchError{URL: task.URL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return PageData{}, &PermanentFetchError{URL: task.URL, Status: resp.StatusCode}
	}

	body := make([]byte, 0, 64*1024)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if readErr != nil {
			if readErr != io.EOF {
				return PageData{}, &PermanentFetchError{URL: task.URL, Err: readErr}
			}
			break
		}
	}

	return PageData{
		URL:              resp.Request.URL.String(),
		StatusCode:       resp.StatusCode,
		Headers:          resp.Header,
		HTML:             string(body),
		FetchedAt:        start,
		ScrapeDurationMs: time.Since(start).Milliseconds(),
		Depth:            task.Depth,
	}, nil
}
