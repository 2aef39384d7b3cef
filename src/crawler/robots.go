package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/rehttp"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// cachedRobots stores parsed robots.txt data for a host. Entries never
// expire: a single robots.txt fetch governs the whole engine lifetime
// (spec Open Question, resolved in favour of one deterministic read per
// host rather than a wall-clock TTL that could change policy mid-crawl).
type cachedRobots struct {
	data        *robotstxt.RobotsData // nil means "allow all" (404, parse failure)
	disallowAll bool                  // 401/403, or 5xx (policy unknown, not absent): deny
	temporary   bool                  // don't cache: re-fetch next time instead of pinning a transient failure
}

// RobotsChecker fetches, parses and caches robots.txt per host. Fetches
// for the same host are coalesced with singleflight so a burst of
// frontier admissions for one domain triggers exactly one request.
type RobotsChecker struct {
	client *http.Client
	cache  sync.Map // host string -> *cachedRobots
	group  singleflight.Group
}

// NewRobotsChecker builds a RobotsChecker with its own short-timeout,
// retrying transport. Retries use the same exponential backoff shape as
// ordinary fetches (spec §4.3) but are capped at robotsMaxRetries since a
// slow or flaky robots.txt should not stall frontier admission for long.
func NewRobotsChecker() *RobotsChecker {
	transport := rehttp.NewTransport(
		http.DefaultTransport,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(robotsMaxRetries),
			rehttp.RetryAny(
				rehttp.RetryTemporaryErr(),
				rehttp.RetryStatuses(http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout),
			),
		),
		rehttp.ExpJitterDelay(retryBaseDelay, retryMaxDelay),
	)
	return &RobotsChecker{
		client: &http.Client{Timeout: robotsFetchTimeout, Transport: transport},
	}
}

// Allowed reports whether rawURL may be fetched by userAgent. Network or
// parse failures fail open (allow), matching robots.txt's own convention
// that an unreadable policy imposes no restriction.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse url for robots check: %w", err)
	}
	host := parsed.Host
	if host == "" {
		return true, nil
	}

	if cached, ok := r.cache.Load(host); ok {
		entry := cached.(*cachedRobots)
		return entry.allows(parsed.Path, userAgent), nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		return r.fetch(ctx, parsed.Scheme, host), nil
	})
	if err != nil {
		return true, err
	}
	entry := v.(*cachedRobots)
	if !entry.temporary {
		r.cache.Store(host, entry)
	}
	return entry.allows(parsed.Path, userAgent), nil
}

// allows applies the cached policy to one path: disallowAll (a 401/403
// or 5xx robots.txt fetch) wins over a missing policy, which defaults open.
func (c *cachedRobots) allows(path, userAgent string) bool {
	if c.disallowAll {
		return false
	}
	if c.data == nil {
		return true
	}
	return c.data.TestAgent(path, userAgent)
}

// fetch retrieves and parses robots.txt for host, always returning a
// usable (possibly allow-all) entry; it never returns an error because a
// fetch failure is itself a policy decision (allow all).
func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) *cachedRobots {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &cachedRobots{}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &cachedRobots{}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return &cachedRobots{}
	}

	if resp.StatusCode == http.StatusNotFound {
		return &cachedRobots{}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &cachedRobots{disallowAll: true}
	}

	// A 5xx means the server's robots policy is unknown, not absent: spec
	// §4.3 step 4 treats this as a temporary condition and denies
	// conservatively rather than opening the host up, and the entry is
	// never cached so the next admission attempt re-fetches instead of
	// pinning the host disallowed for the rest of the crawl.
	if resp.StatusCode >= 500 {
		return &cachedRobots{disallowAll: true, temporary: true}
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil || robots == nil {
		return &cachedRobots{}
	}

	return &cachedRobots{data: robots}
}

// ClearCache drops every cached robots.txt entry; used by tests that
// need a host re-fetched under new server behaviour.
func (r *RobotsChecker) ClearCache() {
	r.cache = sync.Map{}
}
