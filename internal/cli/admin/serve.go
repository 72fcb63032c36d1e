package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/govreposcrape/govsearch/internal/api/handlers"
	"github.com/govreposcrape/govsearch/internal/config"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/ingest"
	"github.com/govreposcrape/govsearch/internal/jobs"
	"github.com/govreposcrape/govsearch/internal/mcp"
	"github.com/govreposcrape/govsearch/internal/server"
	"github.com/govreposcrape/govsearch/internal/telemetry"
)

// Version is stamped at build time.
var Version = "dev"

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the govsearch API server. With --ingest-interval the ingestion pipeline also runs on a schedule.",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Duration("ingest-interval", 0, "Run ingestion on this interval (0 disables)")
	cmd.Flags().Bool("ingest-on-start", false, "Run ingestion once at startup when scheduled")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}

	stack, err := BuildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	svc := stack.SearchService()
	mcpServer := mcp.NewServer(mcp.ServerConfig{Name: "govsearch", Version: Version}, mcp.NewSearchTool(svc).WithLogger(logger))

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:   handlers.NewSearchHandler(svc, stack.Events),
		HealthHandler:   handlers.NewHealthHandler(stack.Health),
		MCPHandler:      mcp.NewHTTPHandler(mcpServer),
		Logger:          logger,
		Events:          stack.Events,
		ProtocolVersion: cfg.ProtocolVersion,
		MCPMaxBodyBytes: cfg.MCPMaxBodyBytes,
	})

	var worker *jobs.Worker
	interval, _ := cmd.Flags().GetDuration("ingest-interval")
	if interval > 0 {
		pipeline, err := stack.Pipeline("")
		if err != nil {
			return err
		}
		opts := []jobs.WorkerOption{jobs.WithLogger(logger)}
		if onStart, _ := cmd.Flags().GetBool("ingest-on-start"); onStart {
			opts = append(opts, jobs.RunAtStart())
		}
		job := jobs.NewIngestJob(pipeline, ingest.Options{BatchSize: 1})
		worker = jobs.NewWorker(job, interval, opts...)
		go worker.Start(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("port", cfg.Port), slog.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func initTelemetry(cfg *config.Config, logger *slog.Logger) (func(), error) {
	return telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "govsearch@" + Version,
		TracesSampleRate: cfg.SentryTracesSampleRate,
		Debug:            cfg.Debug,
	}, logger)
}
