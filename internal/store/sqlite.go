package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dhrumilbhut/codevoice/internal/domain"
	"github.com/dhrumilbhut/codevoice/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		answer TEXT NOT NULL,
		steps INTEGER NOT NULL,
		files_written INTEGER NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRun inserts one completed run. SQLITE_BUSY conflicts are retried with
// exponential backoff.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *domain.RunRecord) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.saveRunOnce(ctx, rec)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("SaveRun hit a busy database, retrying",
				"run_id", rec.ID,
				"attempt", i+1,
				"delay", delay,
			)
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("save run %s after %d attempts: %w", rec.ID, maxRetries, err)
}

func (s *SQLiteStore) saveRunOnce(ctx context.Context, rec *domain.RunRecord) error {
	query := `
		INSERT INTO runs (id, category, answer, steps, files_written, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	degraded := 0
	if rec.Degraded {
		degraded = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Category, rec.Answer,
		rec.Steps, rec.FilesWritten, degraded,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRecent returns the newest runs, most recent first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, category, answer, steps, files_written, degraded, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent runs rows", "error", closeErr)
		}
	}()

	var records []*domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var degraded int
		var createdAt int64

		if err := rows.Scan(
			&rec.ID, &rec.Category, &rec.Answer,
			&rec.Steps, &rec.FilesWritten, &degraded, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		rec.Degraded = degraded != 0
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent runs: %w", err)
	}
	return records, nil
}

// CleanupExpiredRuns deletes runs older than ttl.
func (s *SQLiteStore) CleanupExpiredRuns(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired runs: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
