package admin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/govreposcrape/govsearch/internal/config"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/ingest"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var (
		opts    ingest.Options
		feedURL string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Summarise repositories from the feed into the object store",
		Long: `Fetches the repository feed, skips repositories whose recorded pushedAt
is unchanged, and summarises, indexes and uploads the rest.

Run several processes in parallel with the same --batch-size and distinct
--offset values to split the feed between them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts, feedURL)
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 1, "Number of parallel partitions")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Partition handled by this process (0 <= offset < batch-size)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Process at most this many repositories (0 means all)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report cache decisions without cloning or uploading")
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "Override the repository feed URL")

	return cmd
}

func runIngest(parent context.Context, opts ingest.Options, feedURL string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ingest.ValidatePartition(opts.BatchSize, opts.Offset); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := events.NewJSONLogger(os.Stderr, cfg.Debug)
	slog.SetDefault(logger)

	shutdownTelemetry, err := initTelemetry(cfg, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", slog.String("error", err.Error()))
	} else {
		defer shutdownTelemetry()
	}

	stack, err := BuildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	pipeline, err := stack.Pipeline(feedURL)
	if err != nil {
		return err
	}

	stats, err := pipeline.RunFeed(ctx, opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("total=%d cached=%d processed=%d failed=%d cache_hit_rate=%.1f%%\n",
		stats.Total, stats.Cached, stats.Processed, stats.Failed, stats.CacheHitRate())
	return nil
}
