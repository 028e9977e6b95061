// Package ledger holds the authoritative in-memory map of open positions.
// It is the single writer of position state in the process: every mutation
// goes through a ledger method, which updates memory and mirrors the change
// to the persistent store.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// Ledger maps position id to the live Position. Accessors return copies;
// callers never hold references into the map.
type Ledger struct {
	store  domain.PositionStore
	audit  domain.AuditStore
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]*domain.Position
}

// New creates an empty ledger backed by store. audit may be nil.
func New(store domain.PositionStore, audit domain.AuditStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		audit:     audit,
		logger:    logger.With(slog.String("component", "ledger")),
		positions: make(map[string]*domain.Position),
	}
}

// Initialize loads every non-closed position from the store into memory,
// repairing known legacy data defects first. Call once at startup.
func (l *Ledger) Initialize(ctx context.Context) error {
	loaded, err := l.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load positions: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range loaded {
		pos := loaded[i]
		if repairQuantity(&pos) {
			l.logger.WarnContext(ctx, "ledger: repaired legacy quantity",
				slog.String("position_id", pos.ID),
				slog.String("token", pos.Token.Key()),
				slog.Float64("quantity", pos.Quantity),
			)
			if err := l.store.Update(ctx, pos); err != nil {
				l.logger.WarnContext(ctx, "ledger: persist repaired quantity failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		// The flag guards a single outstanding sell; any such sell died
		// with the previous process.
		pos.ExitPending = false
		p := pos
		l.positions[p.ID] = &p
	}

	l.logger.InfoContext(ctx, "ledger: initialized",
		slog.Int("positions", len(l.positions)),
	)
	return nil
}

// repairQuantity rescales quantities damaged by a historical unit-normalization
// bug that divided by the token's decimal precision twice. A real holding can
// never be smaller than one base unit of the token.
func repairQuantity(p *domain.Position) bool {
	if p.Quantity <= 0 {
		return false
	}
	oneUnit := math.Pow10(-int(p.Token.Decimals))
	if p.Quantity >= oneUnit {
		return false
	}
	p.Quantity *= math.Pow10(int(p.Token.Decimals))
	return true
}

// Add inserts a new position into the store and the map.
func (l *Ledger) Add(ctx context.Context, pos domain.Position) error {
	if err := l.store.Create(ctx, pos); err != nil {
		return fmt.Errorf("ledger: create position %s: %w", pos.ID, err)
	}

	l.mu.Lock()
	p := pos
	l.positions[p.ID] = &p
	l.mu.Unlock()

	l.logEvent(ctx, "position_opened", map[string]any{
		"position_id": pos.ID,
		"order_id":    pos.OrderID,
		"token":       pos.Token.Key(),
		"quantity":    pos.Quantity,
		"cost_basis":  pos.CostBasis,
	})
	return nil
}

// Get returns a copy of the position, if held.
func (l *Ledger) Get(id string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return clone(p), true
}

// ByOrder returns copies of all positions belonging to the order.
func (l *Ledger) ByOrder(orderID string) []domain.Position {
	return l.filter(func(p *domain.Position) bool { return p.OrderID == orderID })
}

// ByUser returns copies of all positions belonging to the user.
func (l *Ledger) ByUser(userID int64) []domain.Position {
	return l.filter(func(p *domain.Position) bool { return p.UserID == userID })
}

// AllOpen returns copies of every held position.
func (l *Ledger) AllOpen() []domain.Position {
	return l.filter(func(*domain.Position) bool { return true })
}

func (l *Ledger) filter(match func(*domain.Position) bool) []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Position
	for _, p := range l.positions {
		if match(p) {
			out = append(out, clone(p))
		}
	}
	return out
}

// UpdatePrice sets the live price, recomputes PNL, and persists the snapshot.
func (l *Ledger) UpdatePrice(ctx context.Context, id string, price float64) error {
	l.mu.Lock()
	p, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return domain.ErrNotFound
	}
	p.CurrentPrice = price
	p.PNL, p.PNLPercent = p.ComputePNL(price)
	p.UpdatedAt = time.Now().UTC()
	pnl, pnlPct := p.PNL, p.PNLPercent
	l.mu.Unlock()

	if err := l.store.UpdatePrice(ctx, id, price, pnl, pnlPct); err != nil {
		return fmt.Errorf("ledger: persist price %s: %w", id, err)
	}
	return nil
}

// Activate moves a pending position to active once its buy is confirmed.
func (l *Ledger) Activate(ctx context.Context, id string) error {
	l.mu.Lock()
	p, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return domain.ErrNotFound
	}
	p.Status = domain.PositionActive
	snapshot := clone(p)
	l.mu.Unlock()

	if err := l.store.Update(ctx, snapshot); err != nil {
		return fmt.Errorf("ledger: persist activation %s: %w", id, err)
	}
	return nil
}

// SetExitPending flips the pending-exit guard. Setting it when already set
// returns ErrExitAlreadyPending so a second cycle cannot start a second sell.
func (l *Ledger) SetExitPending(id string, pending bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if pending && p.ExitPending {
		return domain.ErrExitAlreadyPending
	}
	p.ExitPending = pending
	return nil
}

// MergeTriggered unions store-reported triggered indices into memory. The
// persisted set is ground truth; indices are never removed.
func (l *Ledger) MergeTriggered(id string, kind domain.LevelKind, indices []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[id]; ok {
		p.MergeTriggered(kind, indices)
	}
}

// MarkLevelTriggered records the exit level in the store's triggered set and
// merges the persisted set back into memory. added reports whether this call
// performed the insertion; exactly one caller per level ever sees true.
func (l *Ledger) MarkLevelTriggered(ctx context.Context, id string, kind domain.LevelKind, index int) (bool, error) {
	triggered, added, err := l.store.MarkLevelTriggered(ctx, id, kind, index)
	if err != nil {
		return false, fmt.Errorf("ledger: mark level %s[%d] on %s: %w", kind, index, id, err)
	}
	l.MergeTriggered(id, kind, triggered)
	return added, nil
}

// ReduceQuantity applies a partial exit: the cost basis keeps a proportional
// share of the original spend, and the quantity is set from the post-sell
// on-chain reading.
func (l *Ledger) ReduceQuantity(ctx context.Context, id string, sellPercent, newQuantity float64) error {
	l.mu.Lock()
	p, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return domain.ErrNotFound
	}
	p.CostBasis = p.CostBasis * (100 - sellPercent) / 100
	p.Quantity = newQuantity
	p.PNL, p.PNLPercent = p.ComputePNL(p.CurrentPrice)
	p.UpdatedAt = time.Now().UTC()
	snapshot := clone(p)
	l.mu.Unlock()

	if err := l.store.Update(ctx, snapshot); err != nil {
		return fmt.Errorf("ledger: persist partial exit %s: %w", id, err)
	}

	l.logEvent(ctx, "position_reduced", map[string]any{
		"position_id":  id,
		"sell_percent": sellPercent,
		"quantity":     snapshot.Quantity,
		"cost_basis":   snapshot.CostBasis,
	})
	return nil
}

// Close finalizes a position: the persistent record is deleted and the
// position leaves the map. Close is unconditional and not reversible.
func (l *Ledger) Close(ctx context.Context, id string, exitPrice float64, exitTxHash string) error {
	l.mu.Lock()
	p, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return domain.ErrNotFound
	}
	p.Status = domain.PositionClosed
	delete(l.positions, id)
	l.mu.Unlock()

	if err := l.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("ledger: delete position %s: %w", id, err)
	}

	l.logEvent(ctx, "position_closed", map[string]any{
		"position_id": id,
		"exit_price":  exitPrice,
		"exit_tx":     exitTxHash,
	})
	return nil
}

func (l *Ledger) logEvent(ctx context.Context, event string, detail map[string]any) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Log(ctx, event, detail); err != nil {
		l.logger.WarnContext(ctx, "ledger: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// clone copies a position including its triggered sets so callers can never
// alias the ledger's slices.
func clone(p *domain.Position) domain.Position {
	out := *p
	out.TakeProfits = append([]domain.ExitLevel(nil), p.TakeProfits...)
	out.StopLosses = append([]domain.ExitLevel(nil), p.StopLosses...)
	out.TriggeredTP = append([]int(nil), p.TriggeredTP...)
	out.TriggeredSL = append([]int(nil), p.TriggeredSL...)
	return out
}
