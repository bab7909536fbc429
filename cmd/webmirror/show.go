package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/webmirror/internal/config"
	"github.com/IshaanNene/webmirror/internal/identity"
	"github.com/IshaanNene/webmirror/internal/storage"
	"github.com/IshaanNene/webmirror/internal/types"
)

var showKind string

// showCmd creates the "show" subcommand, which prints one stored artifact.
func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [url]",
		Short: "Print a stored artifact of a mirrored page",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	cmd.Flags().StringVarP(&showKind, "kind", "k", "md", "artifact kind: html, docjson, links, markdown (or extension)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "/tmp/web_mirror", "output directory for file storage")
	cmd.Flags().StringVar(&storageType, "storage", "file", "artifact storage: file, mongodb, multi")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	kind, ok := identity.ParseKind(showKind)
	if !ok {
		return fmt.Errorf("unknown artifact kind %q", showKind)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(&cfg.Logging)
	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	key := identity.Resolve(args[0])
	data, err := store.Load(cmd.Context(), key, kind)
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("no %s artifact for %s (key %s)", kind, args[0], key)
	}
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
