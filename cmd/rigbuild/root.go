package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/rigbuild/internal/api"
	"github.com/hyperengineering/rigbuild/internal/catalog"
	"github.com/hyperengineering/rigbuild/internal/config"
	"github.com/hyperengineering/rigbuild/internal/session"
	"github.com/hyperengineering/rigbuild/internal/worker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "rigbuild",
	Short:        "Rigbuild - PC build wizard service",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.AddCommand(partsCmd)
	rootCmd.AddCommand(shareCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	return serve(ctx, os.Stdout)
}

// serve runs the server until ctx is cancelled or the listener fails, then
// shuts down in order: HTTP server, workers, sessions, catalog.
func serve(ctx context.Context, logOut io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	slog.SetDefault(newLogger(logOut, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize catalog (migrations, WAL mode)
	db, err := catalog.NewSQLiteCatalog(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("catalog initialized", "path", cfg.Database.Path)

	// 5. Session manager persists through the same database
	sessions := session.NewManager(db)
	slog.Info("session manager initialized")

	// 6. Initialize HTTP router
	handler := api.NewHandler(db, sessions, cfg.Auth.APIKey, Version, cfg.Share.BaseURL)
	limiter := api.NewDeleteRateLimiter(cfg.RateLimit.DeletesPerSecond, cfg.RateLimit.DeleteBurst)
	router := api.NewRouter(handler, limiter)
	slog.Info("router initialized")

	// 7. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 8. Background workers
	var wg sync.WaitGroup
	sweeper := worker.NewSessionSweepWorker(sessions,
		time.Duration(cfg.Session.IdleTTL),
		time.Duration(cfg.Session.SweepInterval))
	startWorker(ctx, &wg, "session-sweep", sweeper.Run)

	// 9. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 10. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 11. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 11a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 11b. Wait for workers to complete
	wg.Wait()

	// 11c. Drop session subscriptions, then close the database
	sessions.Close()
	if err := db.Close(); err != nil {
		slog.Error("catalog close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger from the log settings. Unknown
// formats fall back to JSON.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
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

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
