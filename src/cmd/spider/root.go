// Package spider implements the spider CLI: a Cobra command tree whose
// flags bind through Viper (so SPIDER_* environment variables and a
// config file both work), translated into a crawler.Config and either
// an interactive Bubble Tea run or a headless JSON/CSV one.
package spider

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jambudipa/spider/crawler"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "spider <url> [url...]",
	Short: "A polite, concurrent web crawler.",
	Long: `spider crawls one or more seed URLs breadth-first, honoring
robots.txt and a per-host rate limit, and reports every page it emits,
drops, or fails to fetch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runE(cmd, args)
	},
}

// Execute runs the root command; it is called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (none is read unless this is set)")
	flags.Int("max-depth", 0, "maximum crawl depth (0 = unlimited)")
	flags.Int("max-pages", 0, "maximum pages to emit (0 = unlimited)")
	flags.Int("workers", 5, "number of concurrent crawl workers")
	flags.Int("concurrency", 4, "stored in the config; the engine does not read it (each worker fetches one page at a time)")
	flags.Duration("request-delay", time.Second, "minimum delay between requests to the same host")
	flags.String("user-agent", "JambudipaSpider/1.0", "User-Agent header sent with every request")
	flags.Bool("ignore-robots", false, "disable robots.txt enforcement (use only on sites you control)")
	flags.Bool("no-follow-redirects", false, "do not follow HTTP redirects")
	flags.StringSlice("allow-domain", nil, "restrict the crawl to these domains (default: no restriction)")
	flags.StringSlice("block-domain", nil, "never fetch these domains")
	flags.StringSlice("url-filter", nil, "additional regular expressions; a matching URL is dropped")
	flags.Bool("adaptive-throttling", false, "layer an RTT-adaptive limit on top of --request-delay; it can only slow a host, never speed it up")
	flags.Bool("json", false, "write results as JSON instead of the interactive TUI")
	flags.Bool("csv", false, "write results as CSV instead of the interactive TUI")
	flags.String("output", "", "write structured output to this file instead of stdout")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit structured JSON logs instead of console output")

	for _, name := range []string{
		"max-depth", "max-pages", "workers", "concurrency", "request-delay",
		"user-agent", "ignore-robots", "no-follow-redirects", "allow-domain",
		"block-domain", "url-filter", "adaptive-throttling", "json", "csv",
		"output", "log-level", "log-json",
	} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %q: %v", name, err))
		}
	}

	v.SetEnvPrefix("spider")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// initConfig loads cfgFile into v, if set, before flags are read. Viper
// precedence is flag > env > config file > default, so an explicit flag
// always wins over the file.
func initConfig() error {
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", cfgFile, err)
	}
	return nil
}

// buildConfig translates the bound flags into a crawler.Config and the
// seeds the engine should start from.
func buildConfig(seedURLs []string) (crawler.Config, []crawler.Seed, error) {
	cfg := crawler.DefaultConfig()

	cfg.MaxDepth = v.GetInt("max-depth")
	cfg.MaxPages = v.GetInt("max-pages")
	if workers := v.GetInt("workers"); workers > 0 {
		cfg.MaxConcurrentWorkers = workers
	}
	if c := v.GetInt("concurrency"); c > 0 {
		cfg.Concurrency = c
	}
	if d := v.GetDuration("request-delay"); d > 0 {
		cfg.RequestDelayMs = int(d.Milliseconds())
	}
	if ua := v.GetString("user-agent"); ua != "" {
		cfg.UserAgent = ua
	}
	cfg.IgnoreRobotsTxt = v.GetBool("ignore-robots")
	cfg.FollowRedirects = !v.GetBool("no-follow-redirects")
	cfg.RespectNoFollow = true
	cfg.AllowedDomains = v.GetStringSlice("allow-domain")
	cfg.BlockedDomains = v.GetStringSlice("block-domain")
	cfg.AdaptiveThrottling = v.GetBool("adaptive-throttling")

	for _, pattern := range v.GetStringSlice("url-filter") {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return cfg, nil, fmt.Errorf("compile --url-filter %q: %w", pattern, err)
		}
		cfg.CustomURLFilters = append(cfg.CustomURLFilters, re)
	}

	seeds := make([]crawler.Seed, 0, len(seedURLs))
	for _, u := range seedURLs {
		seeds = append(seeds, crawler.Seed{URL: u})
	}

	return cfg, seeds, nil
}
