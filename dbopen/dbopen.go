// Package dbopen opens the analyzer's SQLite database with production-safe
// pragmas (WAL, busy_timeout, foreign_keys) applied via EXEC so they work
// with any database/sql driver. The default driver is "sqlite"
// (modernc.org/sqlite, CGO-free); callers blank-import it:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("analyzer.db", dbopen.WithSchema(ddl))
package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

type config struct {
	busyTimeoutMS int
	mkdirAll      bool
	schemas       []string
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout overrides PRAGMA busy_timeout (milliseconds, default 10000).
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeoutMS = ms } }

// WithMkdirAll creates the database file's parent directories before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues DDL to execute after the pragmas are applied.
// Statements must be idempotent (CREATE TABLE IF NOT EXISTS ...).
func WithSchema(ddl string) Option { return func(c *config) { c.schemas = append(c.schemas, ddl) } }

// Open opens the SQLite database at path, applies pragmas, runs queued
// schemas, and verifies the connection with a ping.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := config{busyTimeoutMS: 10_000}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}

	for _, ddl := range cfg.schemas {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests. MaxOpenConns is pinned
// to 1 because every new ":memory:" connection is a separate database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// IsBusy reports whether err indicates an SQLITE_BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx executes fn inside a transaction, retrying the whole transaction on
// SQLITE_BUSY with a short backoff. Any other error rolls back and returns
// immediately.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retry.Do(
		func() error {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("dbopen: begin tx: %w", err)
			}
			if err := fn(tx); err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("dbopen: commit: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxJitter(50*time.Millisecond),
		retry.RetryIf(IsBusy),
		retry.LastErrorOnly(true),
	)
}
