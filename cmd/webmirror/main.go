package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/webmirror/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webmirror",
		Short: "webmirror mirrors a website into HTML, JSON and Markdown artifacts",
		Long: `webmirror crawls a site breadth-first from a root URL and stores four
artifacts per page: the raw HTML, a pruned document tree as JSON, the page's
normalized links, and a Markdown rendering.

Only links containing the root URL are followed, and the crawl stops after
max-pages+1 pages.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webmirror %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Engine:\n")
	fmt.Fprintf(w, "  Max Pages:         %d\n", cfg.Engine.MaxPages)
	fmt.Fprintf(w, "  Concurrency:       %d\n", cfg.Engine.Concurrency)
	fmt.Fprintf(w, "  Request Timeout:   %s\n", cfg.Engine.RequestTimeout)
	fmt.Fprintf(w, "  User Agents:       %d configured\n", len(cfg.Engine.UserAgents))
	fmt.Fprintf(w, "\nFetcher:\n")
	fmt.Fprintf(w, "  Type:              %s\n", cfg.Fetcher.Type)
	fmt.Fprintf(w, "  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
	fmt.Fprintf(w, "  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
	fmt.Fprintf(w, "  Stealth:           %v\n", cfg.Fetcher.Stealth)
	fmt.Fprintf(w, "\nStorage:\n")
	fmt.Fprintf(w, "  Type:              %s\n", cfg.Storage.Type)
	fmt.Fprintf(w, "  Output Path:       %s\n", cfg.Storage.OutputPath)
	if cfg.Storage.Type != "file" {
		fmt.Fprintf(w, "  Mongo Database:    %s.%s\n", cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection)
	}
	fmt.Fprintf(w, "\nLogging:\n")
	fmt.Fprintf(w, "  Level:             %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format:            %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "\nMetrics:\n")
	fmt.Fprintf(w, "  Enabled:           %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(w, "  Port:              %d\n", cfg.Metrics.Port)
	fmt.Fprintf(w, "\nSearch path:         ., ./configs, %s\n", config.ConfigDir())
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
