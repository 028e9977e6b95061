package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// ExecuteBuy runs a manual buy for the order: the spend is submitted at manual
// priority and, once the swap settles, a pending position is opened. The
// monitoring loop activates it when the receipt confirms.
func (e *Engine) ExecuteBuy(ctx context.Context, orderID string, token domain.TokenInfo, spendBNB float64) (domain.Position, error) {
	settings, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("monitor: load order %s: %w", orderID, err)
	}

	item := domain.NewBuyItem(domain.BuyParams{
		Wallet:      settings.Wallet,
		Token:       token,
		SpendBNB:    spendBNB,
		SlippageBps: settings.SlippageBps,
		Gas:         settings.Gas,
	})
	item.Priority = domain.PriorityManual
	item.OrderID = orderID
	item.UserID = settings.UserID

	if _, err := e.queue.Push(ctx, item); err != nil {
		return domain.Position{}, fmt.Errorf("monitor: enqueue buy: %w", err)
	}

	res, err := item.Await(ctx, e.cfg.ExecTimeout)
	if err != nil {
		return domain.Position{}, fmt.Errorf("monitor: await buy: %w", err)
	}
	if !res.Success {
		return domain.Position{}, fmt.Errorf("monitor: buy failed: %s", res.Err)
	}

	now := time.Now().UTC()
	pos := domain.Position{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		UserID:      settings.UserID,
		Token:       token,
		Quantity:    res.AmountOut,
		CostBasis:   spendBNB,
		BuyTxHash:   res.TxHash,
		Status:      domain.PositionPending,
		TakeProfits: settings.TakeProfits,
		StopLosses:  settings.StopLosses,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	if res.AmountOut > 0 {
		pos.EntryPrice = spendBNB / res.AmountOut
	}

	if err := e.book.Add(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("monitor: record position: %w", err)
	}

	e.logger.InfoContext(ctx, "monitor: manual buy executed",
		slog.String("position_id", pos.ID),
		slog.String("token", token.Key()),
		slog.Float64("spend_bnb", spendBNB),
		slog.Float64("quantity", res.AmountOut),
	)
	e.send(ctx, settings.UserID, fmt.Sprintf(
		"Bought %.6f %s for %.6f BNB. Tx: %s",
		res.AmountOut, token.Symbol, spendBNB, res.TxHash,
	))
	return pos, nil
}

// ExecuteSell runs a manual exit of sellPercent of the position at manual
// priority. It uses the same fencing as automated triggers, so a manual sell
// and an automated one can never race on the same position.
func (e *Engine) ExecuteSell(ctx context.Context, positionID string, sellPercent float64) error {
	if sellPercent <= 0 || sellPercent > 100 {
		return fmt.Errorf("monitor: sell percent %.2f out of range: %w", sellPercent, domain.ErrInvalidItem)
	}

	pos, ok := e.book.Get(positionID)
	if !ok {
		return domain.ErrNotFound
	}

	settings, err := e.orders.GetOrder(ctx, pos.OrderID)
	if err != nil {
		return fmt.Errorf("monitor: load order %s: %w", pos.OrderID, err)
	}

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, "position:"+pos.ID, e.cfg.ExecTimeout+lockGrace)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.ErrExitAlreadyPending
			}
			return fmt.Errorf("monitor: acquire lock: %w", err)
		}
		defer unlock()
	}

	if err := e.book.SetExitPending(pos.ID, true); err != nil {
		return err
	}

	if err := e.performSell(ctx, pos, settings, sellPercent, domain.PriorityManual, "manual sell"); err != nil {
		e.clearExitFlag(pos.ID)
		return fmt.Errorf("monitor: manual sell: %w", err)
	}
	return nil
}
