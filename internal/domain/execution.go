package domain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ExecKind is the operation an execution item performs on chain.
type ExecKind string

const (
	ExecBuy     ExecKind = "buy"
	ExecSell    ExecKind = "sell"
	ExecApprove ExecKind = "approve"
)

// ExecStatus tracks an execution item through the queue.
type ExecStatus string

const (
	ExecPending    ExecStatus = "pending"
	ExecProcessing ExecStatus = "processing"
	ExecCompleted  ExecStatus = "completed"
	ExecFailed     ExecStatus = "failed"
	ExecCancelled  ExecStatus = "cancelled"
)

// Queue priorities. Stop-loss and time-limit exits jump ahead of take-profit
// exits so loss-cutting is never stuck behind profit-taking.
const (
	PriorityBuy        = 50
	PriorityTakeProfit = 60
	PriorityStopLoss   = 80
	PriorityTimeLimit  = 80
	PriorityManual     = 90
)

// DefaultMaxRetries is the retry budget for transient exchange failures.
const DefaultMaxRetries = 3

// GasSettings carries the gas parameters for a single submission.
type GasSettings struct {
	PriceGwei float64
	Limit     uint64
}

// BuyParams is the payload of a buy item: spend SpendBNB of the base currency
// on Token from Wallet.
type BuyParams struct {
	Wallet      common.Address
	Token       TokenInfo
	SpendBNB    float64
	SlippageBps int
	Gas         GasSettings
}

// SellParams is the payload of a sell item: sell Quantity of Token held by
// Wallet back into the base currency.
type SellParams struct {
	Wallet      common.Address
	Token       TokenInfo
	Quantity    float64
	SlippageBps int
	Gas         GasSettings
}

// ApproveParams is the payload of an approve item: grant the router spend
// allowance over Token for Wallet.
type ApproveParams struct {
	Wallet common.Address
	Token  TokenInfo
	Gas    GasSettings
}

// ExecResult is the outcome of a completed, failed, or cancelled item.
type ExecResult struct {
	Success   bool
	TxHash    string
	AmountOut float64 // tokens received for buys, BNB received for sells
	Err       string
}

// ExecItem is one queued buy/sell/approve intent. Exactly one of Buy, Sell, or
// Approve is set, matching Kind; invalid combinations are rejected by Validate.
//
// The item is owned by the queue while enqueued or processing. Callers observe
// the outcome through Await, which is signalled exactly once when the item
// reaches a terminal state.
type ExecItem struct {
	ID         string
	Kind       ExecKind
	Buy        *BuyParams
	Sell       *SellParams
	Approve    *ApproveParams
	Priority   int
	MaxRetries int

	// Correlation metadata, optional.
	OrderID    string
	PositionID string
	UserID     int64

	CreatedAt time.Time

	mu         sync.Mutex
	status     ExecStatus
	retryCount int
	result     ExecResult
	enqueuedAt time.Time
	startedAt  time.Time

	settleOnce sync.Once
	done       chan struct{}
}

func newItem(kind ExecKind) *ExecItem {
	return &ExecItem{
		ID:         uuid.New().String(),
		Kind:       kind,
		Priority:   PriorityBuy,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now().UTC(),
		status:     ExecPending,
		done:       make(chan struct{}),
	}
}

// NewBuyItem builds a pending buy item.
func NewBuyItem(p BuyParams) *ExecItem {
	it := newItem(ExecBuy)
	it.Buy = &p
	return it
}

// NewSellItem builds a pending sell item.
func NewSellItem(p SellParams) *ExecItem {
	it := newItem(ExecSell)
	it.Sell = &p
	return it
}

// NewApproveItem builds a pending approve item.
func NewApproveItem(p ApproveParams) *ExecItem {
	it := newItem(ExecApprove)
	it.Approve = &p
	return it
}

// Validate checks the operation-specific required fields. Items failing
// validation never enter the queue.
func (it *ExecItem) Validate() error {
	switch it.Kind {
	case ExecBuy:
		if it.Buy == nil || it.Sell != nil || it.Approve != nil {
			return ErrInvalidItem
		}
		if it.Buy.Wallet == (common.Address{}) || it.Buy.Token.Address == (common.Address{}) || it.Buy.SpendBNB <= 0 {
			return ErrInvalidItem
		}
	case ExecSell:
		if it.Sell == nil || it.Buy != nil || it.Approve != nil {
			return ErrInvalidItem
		}
		if it.Sell.Wallet == (common.Address{}) || it.Sell.Token.Address == (common.Address{}) || it.Sell.Quantity <= 0 {
			return ErrInvalidItem
		}
	case ExecApprove:
		if it.Approve == nil || it.Buy != nil || it.Sell != nil {
			return ErrInvalidItem
		}
		if it.Approve.Wallet == (common.Address{}) || it.Approve.Token.Address == (common.Address{}) {
			return ErrInvalidItem
		}
	default:
		return ErrInvalidItem
	}
	return nil
}

// Wallet returns the account the item submits from, regardless of kind.
func (it *ExecItem) Wallet() common.Address {
	switch it.Kind {
	case ExecBuy:
		return it.Buy.Wallet
	case ExecSell:
		return it.Sell.Wallet
	case ExecApprove:
		return it.Approve.Wallet
	}
	return common.Address{}
}

// Status returns the item's current state.
func (it *ExecItem) Status() ExecStatus {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.status
}

// RetryCount returns how many retries the item has consumed.
func (it *ExecItem) RetryCount() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.retryCount
}

// Result returns the settled result. Only meaningful after Await returns.
func (it *ExecItem) Result() ExecResult {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.result
}

// MarkEnqueued records the enqueue time and resets state to pending. Called by
// the queue on push and on retry-requeue.
func (it *ExecItem) MarkEnqueued() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.status = ExecPending
	it.enqueuedAt = time.Now().UTC()
}

// MarkProcessing transitions the item to processing and records the dispatch
// time.
func (it *ExecItem) MarkProcessing() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.status = ExecProcessing
	it.startedAt = time.Now().UTC()
}

// MarkRetry increments the retry counter and reports whether budget remains.
func (it *ExecItem) MarkRetry() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.retryCount >= it.MaxRetries {
		return false
	}
	it.retryCount++
	return true
}

// WaitDuration is the time the item spent pending before dispatch.
func (it *ExecItem) WaitDuration() time.Duration {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.enqueuedAt.IsZero() || it.startedAt.IsZero() {
		return 0
	}
	return it.startedAt.Sub(it.enqueuedAt)
}

// ExecDuration is the time the item spent processing so far.
func (it *ExecItem) ExecDuration() time.Duration {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.startedAt.IsZero() {
		return 0
	}
	return time.Since(it.startedAt)
}

// Settle moves the item to a terminal state exactly once and wakes every
// caller blocked in Await. Later calls are no-ops, so a late completion after
// a caller timeout cannot flip an already-settled item.
func (it *ExecItem) Settle(status ExecStatus, res ExecResult) {
	it.settleOnce.Do(func() {
		it.mu.Lock()
		it.status = status
		it.result = res
		it.mu.Unlock()
		close(it.done)
	})
}

// Await blocks until the item settles or the timeout elapses. On timeout it
// returns ErrAwaitTimeout; the underlying submission is not cancelled and the
// queue remains the source of truth for its eventual outcome.
func (it *ExecItem) Await(ctx context.Context, timeout time.Duration) (ExecResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-it.done:
		return it.Result(), nil
	case <-timer.C:
		return ExecResult{}, ErrAwaitTimeout
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	}
}
