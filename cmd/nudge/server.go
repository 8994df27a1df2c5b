package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/nudge/internal/api"
	"github.com/kalambet/nudge/internal/config"
	"github.com/kalambet/nudge/internal/executor"
	"github.com/kalambet/nudge/internal/insight"
	"github.com/kalambet/nudge/internal/learning"
	"github.com/kalambet/nudge/internal/metrics"
	"github.com/kalambet/nudge/internal/normalize"
	"github.com/kalambet/nudge/internal/ranker"
	"github.com/kalambet/nudge/internal/retention"
	"github.com/kalambet/nudge/internal/rules"
	"github.com/kalambet/nudge/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nudge server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "nudge version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))

	if len(cfg.Keys()) == 0 {
		slog.Warn("no API keys configured; all endpoints are open (development mode)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()
	slog.Info("storage ready", "backend", cfg.Store, "retention_days", cfg.RetentionDays)

	// Build the suggestion pipeline.
	m := metrics.New()
	classifier := insight.Detect(cfg.StatisticalInsights)
	engine := rules.NewEngine(classifier, m)
	rank := ranker.New(store, learning.NewFileSource(cfg.DataDir))
	exec := executor.New(store, cfg.AutoExecuteConfidence, m)

	handler := api.NewHandler(api.Deps{
		Store:      store,
		Normalizer: normalize.New(cfg.PIISecret, cfg.HashWindowTitles),
		Engine:     engine,
		Ranker:     rank,
		Executor:   exec,
		Keys:       cfg.Keys(),
		Metrics:    m,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Background retention pruning, cancelled on shutdown.
	if pruner, ok := store.(storage.Pruner); ok {
		worker := retention.NewWorker(pruner, cfg.PruneInterval(), m)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("nudge listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown with timeout once the signal context is done.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore builds the configured backend. The backend is selected once
// here; everything downstream depends only on the storage interfaces.
func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return storage.OpenSQLite(cfg.DataDir, cfg.Retention())
	default:
		return storage.NewMemoryStore(cfg.Retention()), nil
	}
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
