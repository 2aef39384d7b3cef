package spider

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jambudipa/spider/crawler"
	"github.com/jambudipa/spider/result"
	"github.com/jambudipa/spider/spiderlog"
	"github.com/jambudipa/spider/tui"
)

// runE is rootCmd's RunE: it loads config, builds the engine, and drives
// either the interactive TUI or a headless run depending on flags.
func runE(cmd *cobra.Command, args []string) error {
	if err := initConfig(); err != nil {
		return err
	}

	useJSON := v.GetBool("json")
	useCSV := v.GetBool("csv")
	if useJSON && useCSV {
		return fmt.Errorf("--json and --csv are mutually exclusive")
	}
	headless := useJSON || useCSV

	cfg, seeds, err := buildConfig(args)
	if err != nil {
		return err
	}

	log, err := spiderlog.New(spiderlog.Options{Level: v.GetString("log-level"), JSON: v.GetBool("log-json")})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	sink := crawler.NewCollectingSink()

	if headless {
		eng, err := crawler.New(cfg, log, nil, sink, nil)
		if err != nil {
			return fmt.Errorf("create engine: %w", err)
		}
		summary, err := eng.Run(ctx, seeds)
		res := result.Build(sink.Results(), summary)
		if err != nil {
			log.Error("crawl finished with error", zap.Error(err))
		}
		if writeErr := writeOutput(res, useJSON); writeErr != nil {
			return writeErr
		}
		if res.HasFailures() {
			os.Exit(1)
		}
		return nil
	}

	events := make(chan crawler.CrawlEvent, 100)
	eng, err := crawler.New(cfg, log, nil, sink, events)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	model := tui.NewModel(ctx, cancel, eng, sink, seeds, events)
	program := tea.NewProgram(model)
	finalModel, err := program.Run()
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	m := finalModel.(tui.Model)
	if m.HasFailures() {
		os.Exit(1)
	}
	return nil
}

// writeOutput writes res to the --output file, or stdout if unset.
func writeOutput(res *result.Result, useJSON bool) error {
	w := os.Stdout
	if path := v.GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		if useJSON {
			return result.WriteJSON(f, res.Pages)
		}
		return result.WriteCSV(f, res.Pages)
	}

	if useJSON {
		return result.WriteJSON(w, res.Pages)
	}
	return result.WriteCSV(w, res.Pages)
}
