package store

import (
	"context"
	"log/slog"
	"time"
)

const ttlWorkerInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically deletes run
// records older than ttl. It stops when ctx is canceled.
func StartTTLWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Run ledger TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if deleted, err := repo.CleanupExpiredRuns(ctx, ttl); err != nil {
					slog.Error("TTL worker failed to cleanup expired runs", "error", err)
				} else if deleted > 0 {
					slog.Info("TTL worker removed expired runs", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
