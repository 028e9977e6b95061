package domain

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo identifies a tradable BEP-20 token.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
}

// Key returns the checksummed hex address used as a map/cache key.
func (t TokenInfo) Key() string {
	return t.Address.Hex()
}

// FromWei converts a raw on-chain amount to human token units.
func FromWei(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(math.Pow10(int(decimals))),
	).Float64()
	return f
}

// ToWei converts human token units to a raw on-chain amount, truncating any
// precision below one wei.
func ToWei(amount float64, decimals uint8) *big.Int {
	f := new(big.Float).Mul(
		big.NewFloat(amount),
		big.NewFloat(math.Pow10(int(decimals))),
	)
	wei, _ := f.Int(nil)
	return wei
}
