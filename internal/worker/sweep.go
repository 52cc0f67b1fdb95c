// Package worker runs the server's background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/rigbuild/internal/session"
)

// Sweeper defines the session operation needed by the sweep worker.
type Sweeper interface {
	Sweep(ctx context.Context, idleTTL time.Duration) (session.SweepResult, error)
}

// SessionSweepWorker evicts idle sessions from memory and purges their
// persisted state once they have been idle longer than the TTL.
type SessionSweepWorker struct {
	sessions Sweeper
	idleTTL  time.Duration
	interval time.Duration
}

// NewSessionSweepWorker creates a worker that sweeps every interval.
func NewSessionSweepWorker(sessions Sweeper, idleTTL, interval time.Duration) *SessionSweepWorker {
	return &SessionSweepWorker{
		sessions: sessions,
		idleTTL:  idleTTL,
		interval: interval,
	}
}

// Run starts the worker loop. The first sweep waits one interval so a
// restart does not immediately purge sessions that were idle while the
// server was down. Respects context cancellation for graceful shutdown.
func (w *SessionSweepWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "session-sweep",
		"idle_ttl", w.idleTTL.String(),
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "session-sweep",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweepWorker) sweep(ctx context.Context) {
	res, err := w.sessions.Sweep(ctx, w.idleTTL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("session sweep failed",
			"component", "worker",
			"action", "sweep_failed",
			"error", err,
		)
		return
	}

	if res.Evicted > 0 || res.Purged > 0 {
		slog.Info("session sweep completed",
			"component", "worker",
			"action", "sweep_completed",
			"evicted", res.Evicted,
			"purged", res.Purged,
		)
	}
}
