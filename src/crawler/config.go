package crawler

import (
	"regexp"
	"time"

	"github.com/jambudipa/spider/urlutil"
)

// Config holds the enumerated knobs of spec §6. The zero value is not
// valid; build one with DefaultConfig and override fields as needed.
type Config struct {
	MaxPages int // 0 means unlimited
	MaxDepth int // 0 means unlimited

	MaxConcurrentWorkers  int
	MaxConcurrentRequests int
	Concurrency           int // defaulted but not read by the engine: each worker fetches one page at a time

	RequestDelayMs int
	UserAgent      string

	FollowRedirects  bool
	RespectNoFollow  bool
	IgnoreRobotsTxt  bool

	AllowedDomains  []string
	BlockedDomains  []string
	CustomURLFilters []*regexp.Regexp

	EnabledExtensionFamilies []urlutil.ExtensionFamily

	NormalizeURLsForDeduplication bool
	Normalize                    urlutil.NormalizeConfig

	// AdaptiveThrottling enables the RTT-adaptive booster described in
	// SPEC_FULL §4.4 on top of the fixed governor floor.
	AdaptiveThrottling bool

	// Link extraction (spec §4.5).
	RestrictCSS       []string
	Tags              []string
	Attrs             []string
	ExtractFromInputs bool

	RedirectCap int

	MemoryThresholdBytes int64

	// RequestMiddlewares and ResponseMiddlewares implement the ordered
	// transformer pipeline of spec §4.6. Request middlewares run in
	// registration order; response middlewares run in reverse.
	RequestMiddlewares  []RequestMiddleware
	ResponseMiddlewares []ResponseMiddleware
}

// DefaultConfig returns a Config with the defaults enumerated in spec §6.
func DefaultConfig() Config {
	workers := 5
	return Config{
		MaxConcurrentWorkers:          workers,
		MaxConcurrentRequests:         workers * 2,
		Concurrency:                   4,
		RequestDelayMs:                1000,
		UserAgent:                     "JambudipaSpider/1.0",
		FollowRedirects:               true,
		RespectNoFollow:               true,
		NormalizeURLsForDeduplication: true,
		Normalize:                     urlutil.DefaultNormalizeConfig(),
		Tags:                          []string{"a", "area", "form", "frame", "iframe", "link"},
		Attrs:                         []string{"href", "action", "src"},
		RedirectCap:                   10,
		MemoryThresholdBytes:          MemoryThresholdBytes,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxConcurrentWorkers <= 0 {
		c.MaxConcurrentWorkers = def.MaxConcurrentWorkers
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = c.MaxConcurrentWorkers * 2
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.RequestDelayMs == 0 {
		c.RequestDelayMs = def.RequestDelayMs
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Normalize.WWWHandling == "" {
		c.Normalize = def.Normalize
	}
	if len(c.Tags) == 0 {
		c.Tags = def.Tags
	}
	if len(c.Attrs) == 0 {
		c.Attrs = def.Attrs
	}
	if c.RedirectCap <= 0 {
		c.RedirectCap = def.RedirectCap
	}
	if c.MemoryThresholdBytes <= 0 {
		c.MemoryThresholdBytes = def.MemoryThresholdBytes
	}
}

func (c *Config) requestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}
