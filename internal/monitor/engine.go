// Package monitor runs the automated exit engine: a fixed-interval loop that
// reprices every open position and fires staged take-profit, stop-loss, and
// time-limit sells through the execution queue.
//
// Trigger execution is fenced three ways so one level can only ever sell once:
// a per-position distributed lock, the store's atomic triggered-set insertion,
// and the in-memory pending-exit flag.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// Defaults for the engine's tunables.
const (
	DefaultInterval    = 2 * time.Second
	DefaultExecTimeout = 120 * time.Second
	DefaultGasHeadroom = 1.5
)

// lockGrace pads the distributed lock's TTL past the bounded sell await, so
// the lock cannot expire while its holder is still waiting on the queue.
const lockGrace = 30 * time.Second

// PositionBook is the slice of the ledger the engine mutates through.
type PositionBook interface {
	AllOpen() []domain.Position
	Get(id string) (domain.Position, bool)
	Add(ctx context.Context, pos domain.Position) error
	UpdatePrice(ctx context.Context, id string, price float64) error
	Activate(ctx context.Context, id string) error
	SetExitPending(id string, pending bool) error
	MarkLevelTriggered(ctx context.Context, id string, kind domain.LevelKind, index int) (bool, error)
	ReduceQuantity(ctx context.Context, id string, sellPercent, newQuantity float64) error
	Close(ctx context.Context, id string, exitPrice float64, exitTxHash string) error
}

// PriceSource serves batch valuations for the cycle.
type PriceSource interface {
	GetPricesBatch(ctx context.Context, tokens []domain.TokenInfo) (map[string]domain.PriceSample, error)
}

// ExecQueue is the slice of the execution queue the engine submits through.
type ExecQueue interface {
	Push(ctx context.Context, item *domain.ExecItem) (string, error)
	Cancel(ctx context.Context, id, reason string) bool
}

// Config carries the engine tunables. Zero values fall back to the defaults.
type Config struct {
	Interval    time.Duration
	ExecTimeout time.Duration
	GasHeadroom float64 // multiplier over the order's expected sell gas cost
	MonitorOnly bool    // evaluate and notify, never sell
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = DefaultExecTimeout
	}
	if c.GasHeadroom <= 0 {
		c.GasHeadroom = DefaultGasHeadroom
	}
	return c
}

// Engine is the monitoring loop.
type Engine struct {
	cfg      Config
	book     PositionBook
	prices   PriceSource
	queue    ExecQueue
	orders   domain.OrderReader
	balances domain.BalanceReader
	receipts domain.ReceiptReader
	locks    domain.LockManager
	notify   domain.NotifySink
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	wg      sync.WaitGroup

	// reported tracks monitor-only triggers that have no triggered-set slot
	// (time limits), so they are announced once instead of every cycle.
	reportMu sync.Mutex
	reported map[string]struct{}
}

// New creates an Engine. locks and notify may be nil; locking then degrades to
// the in-process guards only and notifications are dropped.
func New(
	cfg Config,
	book PositionBook,
	prices PriceSource,
	queue ExecQueue,
	orders domain.OrderReader,
	balances domain.BalanceReader,
	receipts domain.ReceiptReader,
	locks domain.LockManager,
	notify domain.NotifySink,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		book:     book,
		prices:   prices,
		queue:    queue,
		orders:   orders,
		balances: balances,
		receipts: receipts,
		locks:    locks,
		notify:   notify,
		logger:   logger.With(slog.String("component", "monitor")),
		quit:     make(chan struct{}),
		reported: make(map[string]struct{}),
	}
}

// Start launches the monitoring loop. It is a no-op if already started.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx)
	e.logger.InfoContext(ctx, "monitor: engine started",
		slog.Duration("interval", e.cfg.Interval),
		slog.Bool("monitor_only", e.cfg.MonitorOnly),
	)
}

// Stop halts the loop and waits for in-flight trigger executions to settle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	close(e.quit)
	e.wg.Wait()
	e.logger.Info("monitor: engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Cycle(ctx)
		}
	}
}

// Cycle runs one monitoring pass: confirm pending buys, reprice every open
// position, and evaluate exit triggers. Failures on one position never affect
// the others.
func (e *Engine) Cycle(ctx context.Context) {
	positions := e.book.AllOpen()
	if len(positions) == 0 {
		return
	}

	// Per-cycle order settings cache; one lookup per order regardless of how
	// many positions it carries.
	settingsByOrder := make(map[string]domain.OrderSettings)
	settingsFor := func(orderID string) (domain.OrderSettings, bool) {
		if s, ok := settingsByOrder[orderID]; ok {
			return s, true
		}
		s, err := e.orders.GetOrder(ctx, orderID)
		if err != nil {
			e.logger.WarnContext(ctx, "monitor: order lookup failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
			return domain.OrderSettings{}, false
		}
		settingsByOrder[orderID] = s
		return s, true
	}

	var active []domain.Position
	tokens := make([]domain.TokenInfo, 0, len(positions))
	for i := range positions {
		pos := positions[i]
		if pos.Status == domain.PositionPending {
			if !e.confirmPending(ctx, &pos) {
				continue
			}
		}
		active = append(active, pos)
		tokens = append(tokens, pos.Token)
	}
	if len(active) == 0 {
		return
	}

	samples, err := e.prices.GetPricesBatch(ctx, tokens)
	if err != nil {
		e.logger.WarnContext(ctx, "monitor: batch pricing failed",
			slog.String("error", err.Error()),
		)
	}

	now := time.Now().UTC()
	for i := range active {
		pos := active[i]

		sample, priced := samples[pos.Token.Key()]
		if priced {
			if err := e.book.UpdatePrice(ctx, pos.ID, sample.Price); err != nil {
				e.logger.WarnContext(ctx, "monitor: price update failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			} else {
				pos.CurrentPrice = sample.Price
				pos.PNL, pos.PNLPercent = pos.ComputePNL(sample.Price)
			}
		}

		if pos.ExitPending {
			continue
		}

		settings, ok := settingsFor(pos.OrderID)
		if !ok || !settings.Active {
			continue
		}

		exempt, err := e.orders.IsPositionExempt(ctx, pos.ID)
		if err != nil {
			e.logger.WarnContext(ctx, "monitor: exemption lookup failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if exempt {
			continue
		}

		trig, ok := e.evaluate(&pos, settings, now, priced)
		if !ok {
			continue
		}

		// Triggers run off the loop so a slow sell never delays repricing of
		// the other positions. The pending-exit flag and the triggered-set
		// insertion keep later cycles from double-firing.
		e.wg.Add(1)
		go func(pos domain.Position, settings domain.OrderSettings, trig trigger) {
			defer e.wg.Done()
			e.executeTrigger(ctx, pos, settings, trig)
		}(pos, settings, trig)
	}
}

// confirmPending checks a pending position's buy receipt. It returns true when
// the position is (now) active and should be monitored this cycle.
func (e *Engine) confirmPending(ctx context.Context, pos *domain.Position) bool {
	if pos.BuyTxHash == "" {
		return false
	}
	confirmed, success, err := e.receipts.ConfirmTx(ctx, pos.BuyTxHash)
	if err != nil {
		e.logger.WarnContext(ctx, "monitor: buy confirmation failed",
			slog.String("position_id", pos.ID),
			slog.String("tx_hash", pos.BuyTxHash),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !confirmed {
		return false
	}
	if !success {
		// The buy reverted on chain; nothing was acquired.
		e.logger.WarnContext(ctx, "monitor: buy reverted, discarding position",
			slog.String("position_id", pos.ID),
			slog.String("tx_hash", pos.BuyTxHash),
		)
		if err := e.book.Close(ctx, pos.ID, 0, pos.BuyTxHash); err != nil {
			e.logger.WarnContext(ctx, "monitor: discard failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
		e.send(ctx, pos.UserID, fmt.Sprintf("Buy reverted for %s, position discarded. Tx: %s", pos.Token.Symbol, pos.BuyTxHash))
		return false
	}
	if err := e.book.Activate(ctx, pos.ID); err != nil {
		e.logger.WarnContext(ctx, "monitor: activation failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	pos.Status = domain.PositionActive
	e.logger.InfoContext(ctx, "monitor: position activated",
		slog.String("position_id", pos.ID),
		slog.String("token", pos.Token.Key()),
	)
	return true
}

// trigger is one fired exit decision.
type trigger struct {
	kind        domain.LevelKind
	index       int  // level index; -1 for the time-limit exit
	sellPercent float64
	priority    int
	reason      string
}

// evaluate decides whether the position fires an exit this cycle. Stop-loss
// levels are checked before take-profit so loss-cutting wins a tie, and the
// time-limit exit is checked last. priced gates the PNL-based checks; the
// time-limit exit needs no price.
func (e *Engine) evaluate(pos *domain.Position, settings domain.OrderSettings, now time.Time, priced bool) (trigger, bool) {
	if priced {
		for i, lvl := range effectiveLevels(pos.StopLosses, settings.StopLosses, settings.StopLossPct) {
			if pos.HasTriggered(domain.LevelStopLoss, i) {
				continue
			}
			if pos.PNLPercent <= -lvl.TriggerPercent {
				return trigger{
					kind:        domain.LevelStopLoss,
					index:       i,
					sellPercent: lvl.SellPercent,
					priority:    domain.PriorityStopLoss,
					reason:      fmt.Sprintf("stop-loss level %d (%.2f%% <= -%.2f%%)", i, pos.PNLPercent, lvl.TriggerPercent),
				}, true
			}
		}
		for i, lvl := range effectiveLevels(pos.TakeProfits, settings.TakeProfits, settings.TakeProfitPct) {
			if pos.HasTriggered(domain.LevelTakeProfit, i) {
				continue
			}
			if pos.PNLPercent >= lvl.TriggerPercent {
				return trigger{
					kind:        domain.LevelTakeProfit,
					index:       i,
					sellPercent: lvl.SellPercent,
					priority:    domain.PriorityTakeProfit,
					reason:      fmt.Sprintf("take-profit level %d (%.2f%% >= %.2f%%)", i, pos.PNLPercent, lvl.TriggerPercent),
				}, true
			}
		}
	}

	if settings.TimeLimitSec > 0 && pos.Age(now) >= time.Duration(settings.TimeLimitSec)*time.Second {
		return trigger{
			index:       -1,
			sellPercent: 100,
			priority:    domain.PriorityTimeLimit,
			reason:      fmt.Sprintf("time limit (%s held, limit %ds)", pos.Age(now).Round(time.Second), settings.TimeLimitSec),
		}, true
	}

	return trigger{}, false
}

// effectiveLevels picks the level list to monitor: the position's own snapshot
// wins, then the order's live configuration, then the legacy single-pair
// percent expressed as one full-exit level.
func effectiveLevels(posLevels, orderLevels []domain.ExitLevel, legacyPct float64) []domain.ExitLevel {
	if len(posLevels) > 0 {
		return posLevels
	}
	if len(orderLevels) > 0 {
		return orderLevels
	}
	if legacyPct > 0 {
		return []domain.ExitLevel{{TriggerPercent: legacyPct, SellPercent: 100}}
	}
	return nil
}

// executeTrigger runs one fired exit end to end: fence, mark, sell, verify,
// and settle the position's books.
func (e *Engine) executeTrigger(ctx context.Context, pos domain.Position, settings domain.OrderSettings, trig trigger) {
	log := e.logger.With(
		slog.String("position_id", pos.ID),
		slog.String("token", pos.Token.Key()),
		slog.String("reason", trig.reason),
	)

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, "position:"+pos.ID, e.cfg.ExecTimeout+lockGrace)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				log.DebugContext(ctx, "monitor: position locked, skipping trigger")
				return
			}
			log.WarnContext(ctx, "monitor: lock acquisition failed",
				slog.String("error", err.Error()),
			)
			return
		}
		defer unlock()
	}

	if e.cfg.MonitorOnly {
		e.reportTrigger(ctx, pos, trig, log)
		return
	}

	// The pending-exit flag is taken before the level is consumed: if a
	// competing exit already holds the position, the level must stay armed
	// for the next cycle rather than end up marked with no sell behind it.
	if err := e.book.SetExitPending(pos.ID, true); err != nil {
		if !errors.Is(err, domain.ErrExitAlreadyPending) && !errors.Is(err, domain.ErrNotFound) {
			log.WarnContext(ctx, "monitor: exit flag failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if trig.index >= 0 {
		added, err := e.book.MarkLevelTriggered(ctx, pos.ID, trig.kind, trig.index)
		if err != nil {
			e.clearExitFlag(pos.ID)
			log.WarnContext(ctx, "monitor: level marking failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if !added {
			// Another cycle or replica owns this level.
			e.clearExitFlag(pos.ID)
			return
		}
	}

	log.InfoContext(ctx, "monitor: executing trigger",
		slog.Float64("sell_percent", trig.sellPercent),
		slog.Int("priority", trig.priority),
	)

	if err := e.performSell(ctx, pos, settings, trig.sellPercent, trig.priority, trig.reason); err != nil {
		e.clearExitFlag(pos.ID)
		log.ErrorContext(ctx, "monitor: trigger execution failed",
			slog.String("error", err.Error()),
		)
		e.send(ctx, pos.UserID, fmt.Sprintf("Exit failed for %s (%s): %v", pos.Token.Symbol, trig.reason, err))
	}
}

// reportTrigger handles a fired trigger in monitor-only mode. Levels are
// still consumed so a later trade-mode restart agrees on what already fired;
// time-limit triggers have no level slot and are announced once.
func (e *Engine) reportTrigger(ctx context.Context, pos domain.Position, trig trigger, log *slog.Logger) {
	if trig.index >= 0 {
		added, err := e.book.MarkLevelTriggered(ctx, pos.ID, trig.kind, trig.index)
		if err != nil {
			log.WarnContext(ctx, "monitor: level marking failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if !added {
			return
		}
	} else if !e.noteReported(pos.ID, trig) {
		return
	}

	log.InfoContext(ctx, "monitor: trigger fired (monitor only)")
	e.send(ctx, pos.UserID, fmt.Sprintf("Trigger fired for %s: %s (monitor mode, no sell)", pos.Token.Symbol, trig.reason))
}

// noteReported records a no-slot trigger and reports whether this call was
// the first sighting.
func (e *Engine) noteReported(id string, trig trigger) bool {
	key := fmt.Sprintf("%s|%s|%d", id, trig.kind, trig.index)
	e.reportMu.Lock()
	defer e.reportMu.Unlock()
	if _, ok := e.reported[key]; ok {
		return false
	}
	e.reported[key] = struct{}{}
	return true
}

// performSell submits the sell, awaits its settlement, verifies the receipt,
// and updates or closes the position. The caller owns the pending-exit flag on
// error; on success this function settles it.
func (e *Engine) performSell(ctx context.Context, pos domain.Position, settings domain.OrderSettings, sellPercent float64, priority int, reason string) error {
	balance, err := e.balances.GetBalance(ctx, settings.Wallet)
	if err != nil {
		return fmt.Errorf("read gas balance: %w", err)
	}
	if required := settings.GasCostBNB * e.cfg.GasHeadroom; balance < required {
		return fmt.Errorf("%w: have %.6f BNB, need %.6f", domain.ErrInsufficientGas, balance, required)
	}

	held, err := e.balances.GetTokenBalance(ctx, settings.Wallet, pos.Token)
	if err != nil {
		return fmt.Errorf("read token balance: %w", err)
	}
	if held <= domain.DustQuantity {
		// Nothing left on chain; the books just don't know yet.
		if err := e.book.Close(ctx, pos.ID, pos.CurrentPrice, ""); err != nil {
			return fmt.Errorf("close empty position: %w", err)
		}
		e.send(ctx, pos.UserID, fmt.Sprintf("Position in %s closed: wallet balance already empty.", pos.Token.Symbol))
		return nil
	}

	sellQty := held * sellPercent / 100
	item := domain.NewSellItem(domain.SellParams{
		Wallet:      settings.Wallet,
		Token:       pos.Token,
		Quantity:    sellQty,
		SlippageBps: settings.SlippageBps,
		Gas:         settings.Gas,
	})
	item.Priority = priority
	item.OrderID = pos.OrderID
	item.PositionID = pos.ID
	item.UserID = pos.UserID

	if _, err := e.queue.Push(ctx, item); err != nil {
		return fmt.Errorf("enqueue sell: %w", err)
	}

	res, err := item.Await(ctx, e.cfg.ExecTimeout)
	if err != nil {
		if errors.Is(err, domain.ErrAwaitTimeout) {
			// Only clear the guard if the sell never left the queue. A sell
			// already processing may still land; the flag stays set and is
			// reset on the next restart.
			if e.queue.Cancel(ctx, item.ID, "monitor await timeout") {
				return fmt.Errorf("sell timed out in queue: %w", err)
			}
			e.logger.WarnContext(ctx, "monitor: sell still in flight after timeout",
				slog.String("position_id", pos.ID),
				slog.String("item_id", item.ID),
			)
			e.send(ctx, pos.UserID, fmt.Sprintf("Sell for %s still in flight after %s; position stays frozen.", pos.Token.Symbol, e.cfg.ExecTimeout))
			return nil
		}
		return fmt.Errorf("await sell: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("sell failed: %s", res.Err)
	}

	confirmed, success, err := e.receipts.ConfirmTx(ctx, res.TxHash)
	if err != nil {
		return fmt.Errorf("confirm sell %s: %w", res.TxHash, err)
	}
	if !confirmed || !success {
		return fmt.Errorf("%w: sell %s not verified on chain", domain.ErrTransactionFailed, res.TxHash)
	}

	remaining, err := e.balances.GetTokenBalance(ctx, settings.Wallet, pos.Token)
	if err != nil {
		return fmt.Errorf("read post-sell balance: %w", err)
	}

	if sellPercent >= 100 || remaining <= domain.DustQuantity {
		if err := e.book.Close(ctx, pos.ID, pos.CurrentPrice, res.TxHash); err != nil {
			return fmt.Errorf("close position: %w", err)
		}
		e.send(ctx, pos.UserID, fmt.Sprintf(
			"Sold %s (%s): received %.6f BNB, position closed. Tx: %s",
			pos.Token.Symbol, reason, res.AmountOut, res.TxHash,
		))
		return nil
	}

	if err := e.book.ReduceQuantity(ctx, pos.ID, sellPercent, remaining); err != nil {
		return fmt.Errorf("reduce position: %w", err)
	}
	e.clearExitFlag(pos.ID)
	e.send(ctx, pos.UserID, fmt.Sprintf(
		"Sold %.1f%% of %s (%s): received %.6f BNB, %.6f %s remaining. Tx: %s",
		sellPercent, pos.Token.Symbol, reason, res.AmountOut, remaining, pos.Token.Symbol, res.TxHash,
	))
	return nil
}

func (e *Engine) clearExitFlag(id string) {
	if err := e.book.SetExitPending(id, false); err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.logger.Warn("monitor: clearing exit flag failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) send(ctx context.Context, userID int64, message string) {
	if e.notify == nil {
		return
	}
	e.notify.Notify(ctx, userID, message)
}
