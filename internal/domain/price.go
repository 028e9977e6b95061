package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a resolved constant-product pair for a token against the base
// currency. Resolution is stable for the lifetime of the process and may be
// cached permanently.
type Pool struct {
	Pair          common.Address
	TokenIsToken0 bool
}

// PoolReserves are the raw reserve balances of a pair at one instant.
type PoolReserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// PriceSample is one valuation of a token derived from pool reserves,
// denominated in the base currency.
type PriceSample struct {
	Price         float64
	ReserveBase   float64
	ReserveToken  float64
	TokenIsToken0 bool
	Timestamp     time.Time
}
