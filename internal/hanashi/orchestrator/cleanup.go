package orchestrator

import (
	"context"
	"log/slog"
)

// Cleanup prunes old turns, ledger entries and finished queue items, fails
// items stuck in processing, and drops registry entries for actors that have
// exited. Each step is independent; a failing step is logged and skipped.
func (o *Orchestrator) Cleanup(ctx context.Context) {
	now := o.now()

	if n, err := o.store.DeleteTurnsBefore(ctx, now.Add(-o.cfg.Retention)); err != nil {
		slog.Error("cleanup: delete turns", "err", err)
	} else if n > 0 {
		slog.Info("cleanup: deleted old turns", "count", n)
	}

	if n, err := o.store.DeleteProcessedBefore(ctx, now.Add(-o.cfg.Retention)); err != nil {
		slog.Error("cleanup: delete ledger entries", "err", err)
	} else if n > 0 {
		slog.Info("cleanup: deleted ledger entries", "count", n)
	}

	if n, err := o.store.DeleteFinishedBefore(ctx, now.Add(-o.cfg.QueueRetention)); err != nil {
		slog.Error("cleanup: delete finished queue items", "err", err)
	} else if n > 0 {
		slog.Info("cleanup: deleted finished queue items", "count", n)
	}

	if n, err := o.store.FailStaleProcessing(ctx, now.Add(-o.cfg.StaleProcessingAfter)); err != nil {
		slog.Error("cleanup: fail stale items", "err", err)
	} else if n > 0 {
		slog.Warn("cleanup: queue items stuck in processing marked failed", "count", n)
	}

	if n := o.actors.reap(); n > 0 {
		slog.Info("cleanup: reaped stopped actors", "count", n)
	}
}
