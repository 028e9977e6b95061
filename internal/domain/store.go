package domain

import (
	"context"
	"time"
)

// PositionStore persists positions. The in-memory ledger is the single writer;
// the store is its durable mirror.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	// UpdatePrice persists only the live price / PNL snapshot.
	UpdatePrice(ctx context.Context, id string, price, pnl, pnlPercent float64) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Position, error)
	// ListOpen returns every position whose status is not closed.
	ListOpen(ctx context.Context) ([]Position, error)
	// MarkLevelTriggered atomically adds index to the triggered set for kind
	// if it is absent. It returns the post-update set and whether this call
	// performed the insertion. The post-update set is ground truth and must
	// be merged into memory by the caller.
	MarkLevelTriggered(ctx context.Context, id string, kind LevelKind, index int) (triggered []int, added bool, err error)
}

// ExecRecord is the audit row written for every queue item.
type ExecRecord struct {
	ID         string
	Kind       ExecKind
	Status     ExecStatus
	Wallet     string
	Token      string
	Amount     float64
	Priority   int
	RetryCount int
	OrderID    string
	PositionID string
	UserID     int64
	TxHash     string
	Error      string
	CreatedAt  time.Time
}

// ExecutionStore persists the audit trail of execution items.
type ExecutionStore interface {
	Insert(ctx context.Context, rec ExecRecord) error
	UpdateStatus(ctx context.Context, id string, status ExecStatus, retryCount int, txHash, errMsg string) error
}

// AuditStore persists an append-only event log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
