package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. It is an
// append-and-update audit trail; the queue itself never reads it back.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert writes the initial audit row for a queue item.
func (s *ExecutionStore) Insert(ctx context.Context, rec domain.ExecRecord) error {
	const query = `
		INSERT INTO executions (
			id, kind, status, wallet, token, amount, priority, retry_count,
			order_id, position_id, user_id, tx_hash, error, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Kind), string(rec.Status), rec.Wallet, rec.Token,
		rec.Amount, rec.Priority, rec.RetryCount,
		rec.OrderID, rec.PositionID, rec.UserID,
		rec.TxHash, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus records a state transition of a queue item.
func (s *ExecutionStore) UpdateStatus(ctx context.Context, id string, status domain.ExecStatus, retryCount int, txHash, errMsg string) error {
	const query = `
		UPDATE executions SET
			status      = $2,
			retry_count = $3,
			tx_hash     = $4,
			error       = $5,
			updated_at  = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), retryCount, txHash, errMsg)
	if err != nil {
		return fmt.Errorf("postgres: update execution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
