package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// OrderSettings are the per-order trading parameters served by the order/config
// collaborator. They are read-only inputs to the core.
type OrderSettings struct {
	ID     string
	UserID int64
	Wallet common.Address
	Active bool

	SlippageBps int
	Gas         GasSettings
	GasCostBNB  float64 // expected gas cost of one sell, for the balance headroom check

	TakeProfits []ExitLevel
	StopLosses  []ExitLevel

	// Legacy single-pair fallback, used when no level lists are configured.
	TakeProfitPct float64
	StopLossPct   float64

	TimeLimitSec int // 0 disables the time-limit exit
}

// OrderReader serves per-order trading parameters and the per-position
// automation exemption flag. Exemption is always an explicit configuration
// input, never inferred from other fields.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (OrderSettings, error)
	IsPositionExempt(ctx context.Context, positionID string) (bool, error)
}
