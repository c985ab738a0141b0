// Package store implements the Persistence Store (spec §4.1): the
// SQLite-backed system of record for files, tracks, jobs, plans,
// operations, and the plugin/analysis cache tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"spindle/internal/corerr"
)

// Store owns the SQLite connection and exposes typed repositories as
// methods grouped by table across this package's files (files.go,
// tracks.go, jobs.go, plans.go, operations.go, cache.go, stats.go).
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open connects to (creating if absent) the SQLite database at path,
// applies pragmas, and runs any pending migrations.
func Open(path string) (*Store, error) {
	// _txlock=immediate makes every BeginTx acquire SQLite's RESERVED
	// lock up front, so the claim transaction in ClaimNextJob can never
	// race another writer between its SELECT and UPDATE.
	db, err := sql.Open("sqlite", path+"?_txlock=immediate")
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, corerr.New(corerr.StoreIntegrity, "store", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, corerr.New(corerr.StoreIntegrity, "store", "apply migrations", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the filesystem path backing this store.
func (s *Store) Path() string {
	return s.path
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries op with exponential backoff while SQLite reports
// contention, matching spec §4.1's busy-retry discipline for the
// concurrently-upserted cache tables.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	if isSQLiteBusy(lastErr) {
		return corerr.New(corerr.StoreContention, "store", "sqlite busy after retries", lastErr)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) queryRowWithRetry(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	ctx = ensureContext(ctx)
	var row *sql.Row
	err := retryOnBusy(ctx, func() error {
		row = s.db.QueryRowContext(ctx, query, args...)
		return nil
	})
	return row, err
}

// IntegrityCheck runs SQLite's built-in integrity check and returns a
// non-nil error (StoreIntegrity) when it reports anything but "ok".
func (s *Store) IntegrityCheck(ctx context.Context) error {
	row := s.db.QueryRowContext(ensureContext(ctx), "PRAGMA integrity_check")
	var result string
	if err := row.Scan(&result); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "run integrity_check", err)
	}
	if result != "ok" {
		return corerr.New(corerr.StoreIntegrity, "store", "integrity_check reported: "+result, nil)
	}
	return nil
}

// Optimize runs SQLite's incremental optimizer, suitable for periodic
// maintenance jobs.
func (s *Store) Optimize(ctx context.Context) error {
	_, err := s.db.ExecContext(ensureContext(ctx), "PRAGMA optimize")
	if err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "run optimize", err)
	}
	return nil
}
