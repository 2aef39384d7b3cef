package spider

import "testing"

func resetViper() {
	v.Set("max-depth", 0)
	v.Set("max-pages", 0)
	v.Set("workers", 5)
	v.Set("concurrency", 4)
	v.Set("request-delay", 0)
	v.Set("user-agent", "")
	v.Set("ignore-robots", false)
	v.Set("no-follow-redirects", false)
	v.Set("allow-domain", nil)
	v.Set("block-domain", nil)
	v.Set("url-filter", nil)
	v.Set("adaptive-throttling", false)
}

func TestBuildConfigDefaults(t *testing.T) {
	resetViper()
	cfg, seeds, err := buildConfig([]string{"https://example.com"})
	if err != nil {
		t.Fatalf("buildConfig() error: %v", err)
	}
	if len(seeds) != 1 || seeds[0].URL != "https://example.com" {
		t.Errorf("unexpected seeds: %+v", seeds)
	}
	if cfg.MaxConcurrentWorkers != 5 {
		t.Errorf("expected default workers=5, got %d", cfg.MaxConcurrentWorkers)
	}
	if !cfg.FollowRedirects {
		t.Error("expected FollowRedirects=true by default")
	}
	if cfg.IgnoreRobotsTxt {
		t.Error("expected IgnoreRobotsTxt=false by default")
	}
}

func TestBuildConfigOverrides(t *testing.T) {
	resetViper()
	v.Set("max-depth", 3)
	v.Set("workers", 10)
	v.Set("ignore-robots", true)
	v.Set("no-follow-redirects", true)
	v.Set("allow-domain", []string{"example.com"})

	cfg, _, err := buildConfig([]string{"https://example.com"})
	if err != nil {
		t.Fatalf("buildConfig() error: %v", err)
	}
	if cfg.MaxDepth != 3 {
		t.Errorf("expected MaxDepth=3, got %d", cfg.MaxDepth)
	}
	if cfg.MaxConcurrentWorkers != 10 {
		t.Errorf("expected MaxConcurrentWorkers=10, got %d", cfg.MaxConcurrentWorkers)
	}
	if !cfg.IgnoreRobotsTxt {
		t.Error("expected IgnoreRobotsTxt=true")
	}
	if cfg.FollowRedirects {
		t.Error("expected FollowRedirects=false")
	}
	if len(cfg.AllowedDomains) != 1 || cfg.AllowedDomains[0] != "example.com" {
		t.Errorf("unexpected AllowedDomains: %v", cfg.AllowedDomains)
	}
}

func TestBuildConfigInvalidURLFilter(t *testing.T) {
	resetViper()
	v.Set("url-filter", []string{"("})

	if _, _, err := buildConfig([]string{"https://example.com"}); err == nil {
		t.Error("expected error for invalid regex")
	}
}
