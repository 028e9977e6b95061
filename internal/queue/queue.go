// Package queue implements the serialized transaction execution queue. A
// single worker drains items in priority order and submits them to the
// exchange capability one at a time, so two conflicting writes from the same
// account can never be in flight together.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// Stats is a point-in-time snapshot of queue activity.
type Stats struct {
	Pending    int     `json:"pending"`
	Processing int     `json:"processing"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Cancelled  int     `json:"cancelled"`
	AvgWaitMs  float64 `json:"avg_wait_ms"`
	AvgExecMs  float64 `json:"avg_exec_ms"`
}

// Queue is the single-worker, priority-ordered execution scheduler.
type Queue struct {
	exchange  domain.Exchange
	execStore domain.ExecutionStore
	logger    *slog.Logger

	pollInterval time.Duration

	mu         sync.Mutex
	items      []*domain.ExecItem // priority descending, FIFO among equals
	processing *domain.ExecItem
	paused     bool
	started    bool
	completed  int
	failed     int
	cancelled  int
	totalWait  time.Duration
	totalExec  time.Duration

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a Queue that submits through exchange and records an audit row
// per item in execStore. execStore may be nil in tests.
func New(exchange domain.Exchange, execStore domain.ExecutionStore, logger *slog.Logger) *Queue {
	return &Queue{
		exchange:     exchange,
		execStore:    execStore,
		logger:       logger.With(slog.String("component", "exec_queue")),
		pollInterval: time.Second,
		quit:         make(chan struct{}),
	}
}

// SetPollInterval changes the idle poll delay. Must be called before Start.
func (q *Queue) SetPollInterval(d time.Duration) {
	q.pollInterval = d
}

// Push validates the item, inserts it in priority order, and returns its id.
// Validation failures are rejected synchronously and never enter the queue.
func (q *Queue) Push(ctx context.Context, item *domain.ExecItem) (string, error) {
	if err := item.Validate(); err != nil {
		return "", fmt.Errorf("queue: push %s item: %w", item.Kind, err)
	}

	item.MarkEnqueued()

	q.mu.Lock()
	q.insert(item, false)
	q.mu.Unlock()

	q.recordInsert(ctx, item)

	q.logger.DebugContext(ctx, "queue: item enqueued",
		slog.String("item_id", item.ID),
		slog.String("kind", string(item.Kind)),
		slog.Int("priority", item.Priority),
	)
	return item.ID, nil
}

// PushBatch applies Push to each item, returning the ids of those accepted.
// The first validation failure stops the batch and is returned.
func (q *Queue) PushBatch(ctx context.Context, items []*domain.ExecItem) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id, err := q.Push(ctx, it)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// insert places the item keeping priority-descending order with FIFO ties.
// front forces the item ahead of everything pending (retry requeue).
func (q *Queue) insert(item *domain.ExecItem, front bool) {
	if front {
		q.items = append([]*domain.ExecItem{item}, q.items...)
		return
	}
	pos := len(q.items)
	for i, existing := range q.items {
		if item.Priority > existing.Priority {
			pos = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
}

// Cancel removes a still-pending item, settling it as cancelled. It returns
// false when the item is unknown or already processing.
func (q *Queue) Cancel(ctx context.Context, id, reason string) bool {
	q.mu.Lock()
	var found *domain.ExecItem
	for i, it := range q.items {
		if it.ID == id {
			found = it
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.cancelled++
			break
		}
	}
	q.mu.Unlock()

	if found == nil {
		return false
	}
	found.Settle(domain.ExecCancelled, domain.ExecResult{Err: reason})
	q.recordStatus(ctx, found)
	q.logger.InfoContext(ctx, "queue: item cancelled",
		slog.String("item_id", id),
		slog.String("reason", reason),
	)
	return true
}

// CancelByWallet cancels every pending item submitting from the wallet and
// returns how many were cancelled.
func (q *Queue) CancelByWallet(ctx context.Context, wallet common.Address, reason string) int {
	return q.cancelWhere(ctx, reason, func(it *domain.ExecItem) bool {
		return it.Wallet() == wallet
	})
}

// CancelByOrder cancels every pending item correlated with the order id.
func (q *Queue) CancelByOrder(ctx context.Context, orderID, reason string) int {
	return q.cancelWhere(ctx, reason, func(it *domain.ExecItem) bool {
		return it.OrderID == orderID
	})
}

func (q *Queue) cancelWhere(ctx context.Context, reason string, match func(*domain.ExecItem) bool) int {
	q.mu.Lock()
	var kept []*domain.ExecItem
	var removed []*domain.ExecItem
	for _, it := range q.items {
		if match(it) {
			removed = append(removed, it)
		} else {
			kept = append(kept, it)
		}
	}
	q.items = kept
	q.cancelled += len(removed)
	q.mu.Unlock()

	for _, it := range removed {
		it.Settle(domain.ExecCancelled, domain.ExecResult{Err: reason})
		q.recordStatus(ctx, it)
	}
	return len(removed)
}

// Start launches the worker loop. It is a no-op if already started.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(ctx)
	q.logger.InfoContext(ctx, "queue: worker started")
}

// Stop halts the worker, waiting for any in-flight item to finish. Remaining
// queued items are drained and settled as cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mu.Unlock()

	close(q.quit)
	q.wg.Wait()

	q.mu.Lock()
	remaining := q.items
	q.items = nil
	q.cancelled += len(remaining)
	q.mu.Unlock()
	for _, it := range remaining {
		it.Settle(domain.ExecCancelled, domain.ExecResult{Err: "queue stopped"})
	}
	q.logger.Info("queue: worker stopped", slog.Int("drained", len(remaining)))
}

// Pause suspends dispatching without losing queued items.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.logger.Info("queue: paused")
}

// Resume continues dispatching after a Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.logger.Info("queue: resumed")
}

// GetStats reports counts and rolling average wait/execution time.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Pending:   len(q.items),
		Completed: q.completed,
		Failed:    q.failed,
		Cancelled: q.cancelled,
	}
	if q.processing != nil {
		s.Processing = 1
	}
	finished := q.completed + q.failed
	if finished > 0 {
		s.AvgWaitMs = float64(q.totalWait.Milliseconds()) / float64(finished)
		s.AvgExecMs = float64(q.totalExec.Milliseconds()) / float64(finished)
	}
	return s
}

// run is the worker loop: dequeue the highest-priority pending item, dispatch
// it, and immediately try the next; poll after a short delay when idle.
func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-q.quit:
			return
		case <-ctx.Done():
			return
		default:
		}

		item := q.dequeue()
		if item == nil {
			select {
			case <-q.quit:
				return
			case <-ctx.Done():
				return
			case <-time.After(q.pollInterval):
			}
			continue
		}

		q.process(ctx, item)
	}
}

// dequeue pops the head item unless the queue is paused or empty.
func (q *Queue) dequeue() *domain.ExecItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused || len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.processing = item
	return item
}

// process dispatches one item to the exchange. On a retryable failure the item
// is reinserted at the front of the queue ahead of other pending work.
func (q *Queue) process(ctx context.Context, item *domain.ExecItem) {
	item.MarkProcessing()
	q.recordStatus(ctx, item)

	log := q.logger.With(
		slog.String("item_id", item.ID),
		slog.String("kind", string(item.Kind)),
	)
	log.InfoContext(ctx, "queue: dispatching item",
		slog.Int("priority", item.Priority),
		slog.Int("retry", item.RetryCount()),
	)

	var res domain.TradeResult
	var err error
	switch item.Kind {
	case domain.ExecBuy:
		p := item.Buy
		res, err = q.exchange.Buy(ctx, p.Wallet, p.Token, p.SpendBNB, p.SlippageBps, p.Gas)
	case domain.ExecSell:
		p := item.Sell
		res, err = q.exchange.Sell(ctx, p.Wallet, p.Token, p.Quantity, p.SlippageBps, p.Gas)
	case domain.ExecApprove:
		p := item.Approve
		res, err = q.exchange.Approve(ctx, p.Wallet, p.Token, p.Gas)
	}

	wait := item.WaitDuration()
	exec := item.ExecDuration()

	if err != nil {
		if item.MarkRetry() {
			log.WarnContext(ctx, "queue: item failed, requeueing",
				slog.Int("retry", item.RetryCount()),
				slog.Int("max_retries", item.MaxRetries),
				slog.String("error", err.Error()),
			)
			item.MarkEnqueued()
			q.mu.Lock()
			q.insert(item, true)
			q.processing = nil
			q.mu.Unlock()
			q.recordStatus(ctx, item)
			return
		}

		log.ErrorContext(ctx, "queue: item failed permanently",
			slog.String("error", err.Error()),
		)
		item.Settle(domain.ExecFailed, domain.ExecResult{Err: err.Error()})
		q.mu.Lock()
		q.processing = nil
		q.failed++
		q.totalWait += wait
		q.totalExec += exec
		q.mu.Unlock()
		q.recordStatus(ctx, item)
		return
	}

	item.Settle(domain.ExecCompleted, domain.ExecResult{
		Success:   true,
		TxHash:    res.TxHash,
		AmountOut: res.AmountOut,
	})
	q.mu.Lock()
	q.processing = nil
	q.completed++
	q.totalWait += wait
	q.totalExec += exec
	q.mu.Unlock()
	q.recordStatus(ctx, item)

	log.InfoContext(ctx, "queue: item completed",
		slog.String("tx_hash", res.TxHash),
		slog.Float64("amount_out", res.AmountOut),
	)
}

// recordInsert writes the initial audit row. Audit failures never affect the
// item's fate.
func (q *Queue) recordInsert(ctx context.Context, item *domain.ExecItem) {
	if q.execStore == nil {
		return
	}
	rec := recordFor(item)
	if err := q.execStore.Insert(ctx, rec); err != nil {
		q.logger.WarnContext(ctx, "queue: audit insert failed",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (q *Queue) recordStatus(ctx context.Context, item *domain.ExecItem) {
	if q.execStore == nil {
		return
	}
	res := item.Result()
	if err := q.execStore.UpdateStatus(ctx, item.ID, item.Status(), item.RetryCount(), res.TxHash, res.Err); err != nil {
		q.logger.WarnContext(ctx, "queue: audit update failed",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
}

func recordFor(item *domain.ExecItem) domain.ExecRecord {
	rec := domain.ExecRecord{
		ID:         item.ID,
		Kind:       item.Kind,
		Status:     item.Status(),
		Wallet:     item.Wallet().Hex(),
		Priority:   item.Priority,
		RetryCount: item.RetryCount(),
		OrderID:    item.OrderID,
		PositionID: item.PositionID,
		UserID:     item.UserID,
		CreatedAt:  item.CreatedAt,
	}
	switch item.Kind {
	case domain.ExecBuy:
		rec.Token = item.Buy.Token.Key()
		rec.Amount = item.Buy.SpendBNB
	case domain.ExecSell:
		rec.Token = item.Sell.Token.Key()
		rec.Amount = item.Sell.Quantity
	case domain.ExecApprove:
		rec.Token = item.Approve.Token.Key()
	}
	return rec
}
