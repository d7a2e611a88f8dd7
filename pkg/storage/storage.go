// Package storage opens the embedded SQLite store shared by the cache layer and
// provides the transaction helper every mutation runs through.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so entity handlers can run
// either standalone or inside the caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config holds store configuration.
type Config struct {
	// Path is the database file. Use ":memory:" only for throwaway stores.
	Path string

	// BusyTimeoutMillis is how long a writer waits for the file lock.
	BusyTimeoutMillis int
}

// DefaultConfig returns a configuration for the given file path.
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		BusyTimeoutMillis: 5000,
	}
}

// Open opens the store and applies the embedded schema.
//
// The pool is limited to one connection and transactions start with
// BEGIN IMMEDIATE, so every write transaction is exclusive.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeoutMillis)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, Fail("open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Fail("ping", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", cfg.Path).Msg("Storage opened")
	return db, nil
}

// WithTx runs fn inside a transaction. fn's error rolls the transaction back
// and is returned unchanged; begin/commit errors are returned as Failure.
func WithTx(ctx context.Context, db *sql.DB, fn func(q Querier) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Fail("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return Fail("commit", err)
	}
	return nil
}

// Failure is an I/O error from the persistent store. It signals a broken
// environment rather than a condition callers are expected to recover from.
type Failure struct {
	Op  string
	err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("storage %s: %v", f.Op, f.err)
}

// Unwrap returns the underlying driver error.
func (f *Failure) Unwrap() error {
	return f.err
}

// Fail wraps err as a Failure carrying a stack trace. A nil err returns nil
// and an existing Failure is returned as is.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Failure
	if errors.As(err, &existing) {
		return err
	}
	return &Failure{Op: op, err: errors.WithStack(err)}
}

// IsFailure reports whether err is or wraps a Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
