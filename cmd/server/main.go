package main

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

	"github.com/yangwenmai/formconv/internal/api"
	"github.com/yangwenmai/formconv/internal/app"
	"github.com/yangwenmai/formconv/internal/config"
	"github.com/yangwenmai/formconv/internal/output"
	"github.com/yangwenmai/formconv/internal/store"
	"github.com/yangwenmai/formconv/internal/worker"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	loaded := config.LoadEnvFile(envFile)

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if loaded {
		slog.Info("loaded environment file", "path", envFile)
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	s, err := store.New(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Runs left RUNNING by a previous process go back in the queue.
	if n, err := s.ResetStaleRunning(ctx); err != nil {
		slog.Warn("reset stale runs", "error", err)
	} else if n > 0 {
		slog.Info("requeued stale runs", "count", n)
	}

	pipeline, err := app.BuildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	w := worker.New(s, pipeline, cfg.WorkerInterval)
	go w.Start(ctx)

	if cfg.OutputRetention > 0 {
		go sweepOutputs(ctx, cfg.OutputDir, cfg.OutputRetention)
	}

	srv := api.New(s, pipeline,
		api.WithCORSOrigin(cfg.CORSOrigin),
		api.WithOutputLayout(pipeline.Layout()),
	)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("formconv server listening",
		"addr", "http://localhost:"+cfg.Port,
		"agent_mode", cfg.AgentMode,
		"converter", cfg.ConverterURL,
	)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweepOutputs removes expired output files at startup and then at most
// hourly.
func sweepOutputs(ctx context.Context, dir string, retention time.Duration) {
	interval := min(retention, time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := output.CleanOld(dir, retention); err != nil {
			slog.Warn("clean output dir", "dir", dir, "error", err)
		} else if n > 0 {
			slog.Info("removed expired outputs", "dir", dir, "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
