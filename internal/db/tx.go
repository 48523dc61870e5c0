package db

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/logging"
)

var (
	ErrTransactionBegin   = errors.New("failed to begin transaction")
	ErrTransactionCommit  = errors.New("failed to commit transaction")
	ErrMaxRetriesExceeded = errors.New("transaction failed after max retries")
)

const defaultMaxRetries = 3

// TxManager runs closures in a transaction and replays them on
// serialization failures and deadlocks. Any other error is returned as is.
type TxManager struct {
	pool       Pool
	log        *zap.Logger
	maxRetries int
	backoff    time.Duration
}

func NewTxManager(pool Pool, log *zap.Logger) *TxManager {
	return &TxManager{
		pool:       pool,
		log:        logging.OrNop(log),
		maxRetries: defaultMaxRetries,
		backoff:    50 * time.Millisecond,
	}
}

// Run executes fn inside one transaction. fn may be invoked more than once
// and must not keep state across attempts.
func (m *TxManager) Run(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	for attempt := 0; ; attempt++ {
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == m.maxRetries {
			m.log.Error("transaction failed after max retries",
				zap.Int("attempts", attempt+1), zap.Error(err))
			return errors.Mark(err, ErrMaxRetriesExceeded)
		}

		wait := time.Duration(attempt+1) * m.backoff
		m.log.Warn("retrying transaction",
			zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "begin"), ErrTransactionBegin)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.log.Warn("failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Mark(errors.Wrap(err, "commit"), ErrTransactionCommit)
	}
	return nil
}
