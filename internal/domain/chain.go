package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TradeResult is the on-chain outcome of a buy or sell submission.
type TradeResult struct {
	TxHash    string
	AmountOut float64 // tokens received for buys, BNB received for sells
}

// Exchange is the capability through which the queue submits swaps. A sell
// implementation must handle spend-allowance checks and auto-approval itself.
type Exchange interface {
	Buy(ctx context.Context, wallet common.Address, token TokenInfo, spendBNB float64, slippageBps int, gas GasSettings) (TradeResult, error)
	Sell(ctx context.Context, wallet common.Address, token TokenInfo, quantity float64, slippageBps int, gas GasSettings) (TradeResult, error)
	Approve(ctx context.Context, wallet common.Address, token TokenInfo, gas GasSettings) (TradeResult, error)
}

// BalanceReader reads live on-chain balances.
type BalanceReader interface {
	// GetBalance returns the native (gas currency) balance in BNB.
	GetBalance(ctx context.Context, wallet common.Address) (float64, error)
	// GetTokenBalance returns the held token quantity in human units.
	GetTokenBalance(ctx context.Context, wallet common.Address, token TokenInfo) (float64, error)
}

// ReceiptReader confirms submitted transactions independently of whatever the
// submitter reported.
type ReceiptReader interface {
	// ConfirmTx reports whether the transaction is mined and whether it
	// succeeded. A missing receipt yields confirmed=false with a nil error.
	ConfirmTx(ctx context.Context, txHash string) (confirmed, success bool, err error)
}

// PoolReader resolves and reads constant-product pools.
type PoolReader interface {
	// FindPool resolves the token's pair against the base currency. It
	// returns ErrNoPool when the factory knows no such pair.
	FindPool(ctx context.Context, token common.Address) (Pool, error)
	GetReserves(ctx context.Context, pair common.Address) (PoolReserves, error)
}

// NotifySink delivers user-facing trigger/sell/error reports. Delivery is
// fire-and-forget from the core's perspective.
type NotifySink interface {
	Notify(ctx context.Context, userID int64, message string)
}
