package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"spendy/internal/logger"
)

const (
	maxTxAttempts   = 5
	backoffBase     = 20 * time.Millisecond
	backoffJitter   = 10 * time.Millisecond
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// ErrRetriesExhausted wraps the last conflict once every attempt failed.
var ErrRetriesExhausted = errors.New("transaction retry limit exceeded")

type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type SQLXTxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) SQLXTxRunner {
	return SQLXTxRunner{db: db}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return WithTx(ctx, r.db, fn)
}

// Connect opens a Postgres pool and verifies it with a ping.
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// WithTx runs fn in a serializable transaction. Serialization failures and
// deadlocks restart fn from scratch, so fn must not keep state between calls.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if attempt > 1 {
			log := logger.FromContext(ctx)
			log.Debug().Int("attempt", attempt).Err(lastErr).Msg("retrying transaction")
			if err := wait(ctx, attempt-1); err != nil {
				return err
			}
		}
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !isRetryablePGError(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func runOnce(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isRetryablePGError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func wait(ctx context.Context, attempt int) error {
	backoff := time.Duration(attempt*attempt)*backoffBase + time.Duration(rand.Int63n(int64(backoffJitter)))
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
