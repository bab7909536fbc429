package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/webmirror/internal/config"
	"github.com/IshaanNene/webmirror/internal/engine"
	"github.com/IshaanNene/webmirror/internal/fetcher"
	"github.com/IshaanNene/webmirror/internal/storage"
	"github.com/IshaanNene/webmirror/internal/types"
)

var (
	maxPages    int
	outputPath  string
	fetcherType string
	storageType string
	concurrency int
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [root-url]",
		Short: "Mirror a site starting from its root URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}

	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", 5, "visit cap; the crawl stops after max-pages+1 pages")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "/tmp/web_mirror", "output directory for file storage")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "http", "page fetcher: http, browser")
	cmd.Flags().StringVar(&storageType, "storage", "file", "artifact storage: file, mongodb, multi")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 1, "pages fetched in parallel per batch")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	rootURL := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ValidateURL(rootURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", rootURL, err)
	}

	logger := setupLogger(&cfg.Logging)
	logger.Info("starting mirror",
		"root", rootURL,
		"max_pages", cfg.Engine.MaxPages,
		"concurrency", cfg.Engine.Concurrency,
		"fetcher", cfg.Fetcher.Type,
		"storage", cfg.Storage.Type,
		"output", cfg.Storage.OutputPath,
	)

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	eng := engine.New(cfg, logger, f, store)
	if cfg.Metrics.Enabled {
		eng.Metrics().StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, crawlErr := eng.Crawl(ctx, rootURL)
	elapsed := time.Since(start)

	if res != nil {
		printSummary(cmd, cfg, res, eng.Metrics().Snapshot(), elapsed)
	}
	if crawlErr != nil {
		if errors.Is(crawlErr, types.ErrCrawlStopped) {
			logger.Warn("mirror interrupted", "error", crawlErr)
		}
		return crawlErr
	}
	return nil
}

func printSummary(cmd *cobra.Command, cfg *config.Config, res *engine.Result, stats map[string]int64, elapsed time.Duration) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nMirror finished in %s (%s)\n", elapsed.Round(time.Millisecond), res.Reason)
	fmt.Fprintf(w, "   Pages:     %d mirrored, %d still queued\n", len(res.Visited), res.Pending)
	fmt.Fprintf(w, "   Links:     %d discovered, %d enqueued\n", stats["links_discovered"], stats["links_enqueued"])
	fmt.Fprintf(w, "   Data:      %.1fKB downloaded, %d artifacts stored\n", float64(stats["bytes_downloaded"])/1000, stats["artifacts_stored"])
	if cfg.Storage.Type != "mongodb" {
		fmt.Fprintf(w, "   Output:    %s\n", cfg.Storage.OutputPath)
	}
}

// applyCLIOverrides copies explicitly set flags onto the loaded config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-pages") {
		cfg.Engine.MaxPages = maxPages
	}
	if flags.Changed("output") {
		cfg.Storage.OutputPath = outputPath
	}
	if flags.Changed("fetcher") {
		cfg.Fetcher.Type = fetcherType
	}
	if flags.Changed("storage") {
		cfg.Storage.Type = storageType
	}
	if flags.Changed("concurrency") {
		cfg.Engine.Concurrency = concurrency
	}
}
