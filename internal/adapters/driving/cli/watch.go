package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/adapters/driving/watch"
	"github.com/custodia-labs/docquery/internal/core/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch an inbox directory and index new documents",
	Long: `Watches a directory and automatically adds and indexes every
supported file dropped into it. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("%w: no watch directory given and watch.dir is not configured", domain.ErrInvalidInput)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := watch.New(dir, ownerFlag, projectFlag, cfg.EmbedConfig(),
		documentService, indexingService,
		watch.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond))

	err := watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		cmd.Println("\nStopping watcher.")
		return nil
	}
	return err
}
