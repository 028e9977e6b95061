package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromWei(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.InDelta(t, 1.5, FromWei(wei, 18), 1e-12)

	assert.InDelta(t, 123.456, FromWei(big.NewInt(123_456_000), 6), 1e-9)
	assert.Zero(t, FromWei(nil, 18))
}

func TestToWei(t *testing.T) {
	wei := ToWei(1.5, 18)
	expected, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Zero(t, wei.Cmp(expected))

	assert.Zero(t, ToWei(0.5, 6).Cmp(big.NewInt(500_000)))
}
