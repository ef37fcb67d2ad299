// Package store persists the run ledger: one audit record per assistant run.
package store

import (
	"context"
	"time"

	"github.com/dhrumilbhut/codevoice/internal/domain"
)

// Repository is the persistence interface for run records. Records capture
// outcomes only; message history and credentials are never stored.
type Repository interface {
	// SaveRun inserts one completed run.
	SaveRun(ctx context.Context, rec *domain.RunRecord) error

	// ListRecent returns the newest runs, most recent first.
	ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error)

	// CleanupExpiredRuns deletes runs older than ttl and reports how many
	// were removed.
	CleanupExpiredRuns(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
