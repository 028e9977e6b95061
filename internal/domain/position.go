package domain

import "time"

// PositionStatus tracks a position from unconfirmed buy to closed.
type PositionStatus string

const (
	PositionPending PositionStatus = "pending"
	PositionActive  PositionStatus = "active"
	PositionClosed  PositionStatus = "closed"
)

// LevelKind selects which triggered set a level index belongs to.
type LevelKind string

const (
	LevelTakeProfit LevelKind = "take_profit"
	LevelStopLoss   LevelKind = "stop_loss"
)

// DustQuantity is the threshold below which a remaining balance is treated as
// fully exited.
const DustQuantity = 1e-9

// ExitLevel is one staged exit: when PNL reaches TriggerPercent (positive for
// take-profit, magnitude for stop-loss), sell SellPercent of the remaining
// quantity.
type ExitLevel struct {
	TriggerPercent float64 `json:"trigger_percent"`
	SellPercent    float64 `json:"sell_percent"`
}

// Position is a held batch of one token acquired via a buy, tracked until
// fully exited. All mutation goes through the ledger; other components treat
// values returned from the ledger as read-only snapshots.
type Position struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`

	Token      TokenInfo `json:"token"`
	Quantity   float64   `json:"quantity"`    // token units held
	CostBasis  float64   `json:"cost_basis"`  // BNB attributed to the remaining quantity
	EntryPrice float64   `json:"entry_price"` // BNB per token at acquisition
	BuyTxHash  string    `json:"buy_tx_hash"`

	CurrentPrice float64 `json:"current_price"`
	PNL          float64 `json:"pnl"`
	PNLPercent   float64 `json:"pnl_percent"`

	Status      PositionStatus `json:"status"`
	ExitPending bool           `json:"exit_pending"`

	TakeProfits []ExitLevel `json:"take_profits"`
	StopLosses  []ExitLevel `json:"stop_losses"`
	TriggeredTP []int       `json:"triggered_tp"`
	TriggeredSL []int       `json:"triggered_sl"`

	OpenedAt  time.Time `json:"opened_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Value is the position's current worth in BNB.
func (p *Position) Value() float64 {
	return p.Quantity * p.CurrentPrice
}

// ComputePNL returns the absolute and percentage PNL at the given price.
// PNL percent is 0 by convention when the cost basis is zero.
func (p *Position) ComputePNL(price float64) (pnl, pnlPercent float64) {
	pnl = p.Quantity*price - p.CostBasis
	if p.CostBasis > 0 {
		pnlPercent = pnl / p.CostBasis * 100
	}
	return pnl, pnlPercent
}

// HasTriggered reports whether the level index is already in the triggered set
// for the given kind.
func (p *Position) HasTriggered(kind LevelKind, index int) bool {
	set := p.TriggeredTP
	if kind == LevelStopLoss {
		set = p.TriggeredSL
	}
	for _, i := range set {
		if i == index {
			return true
		}
	}
	return false
}

// Levels returns the configured level list for the given kind.
func (p *Position) Levels(kind LevelKind) []ExitLevel {
	if kind == LevelStopLoss {
		return p.StopLosses
	}
	return p.TakeProfits
}

// Age is the elapsed time since acquisition.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}

// MergeTriggered unions the given indices into the triggered set for kind.
// Indices already present are kept once; nothing is ever removed.
func (p *Position) MergeTriggered(kind LevelKind, indices []int) {
	for _, idx := range indices {
		if !p.HasTriggered(kind, idx) {
			if kind == LevelStopLoss {
				p.TriggeredSL = append(p.TriggeredSL, idx)
			} else {
				p.TriggeredTP = append(p.TriggeredTP, idx)
			}
		}
	}
}
