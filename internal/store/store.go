// Package store provides Postgres access shared by all services.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bookhive/internal/apperr"
)

// Queryer is the subset of database operations the ledger writers need.
// Both *sql.DB and *sql.Tx satisfy it, so append-only inserts can run
// standalone or inside a coordinator transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open connects to Postgres and configures the connection pool.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// WithTx runs fn inside a transaction, rolling back on any error or panic
// and committing otherwise. All coordinator operations go through here so
// no partial multi-store write is ever observable.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Postgres error codes that signal a constraint lost a race with a
// concurrent writer.
const (
	codeUniqueViolation    = "23505"
	codeCheckViolation     = "23514"
	codeExclusionViolation = "23P01"
)

// MapConstraint converts constraint violations into Conflict errors.
// Constraints back up the in-transaction checks: when two transactions
// race, the loser surfaces here instead of corrupting the ledger.
func MapConstraint(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation, codeCheckViolation, codeExclusionViolation:
			return apperr.Conflict("%s", pqErr.Detail)
		}
	}
	return err
}

// IsNoRows reports whether err is the sql.ErrNoRows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
