package domain

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWallet() common.Address {
	return common.HexToAddress("0x1111111111111111111111111111111111111111")
}

func testToken() TokenInfo {
	return TokenInfo{
		Address:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Decimals: 18,
		Symbol:   "TKN",
	}
}

func TestExecItemValidate(t *testing.T) {
	t.Run("valid buy", func(t *testing.T) {
		it := NewBuyItem(BuyParams{Wallet: testWallet(), Token: testToken(), SpendBNB: 0.5})
		assert.NoError(t, it.Validate())
	})

	t.Run("buy without spend", func(t *testing.T) {
		it := NewBuyItem(BuyParams{Wallet: testWallet(), Token: testToken()})
		assert.ErrorIs(t, it.Validate(), ErrInvalidItem)
	})

	t.Run("sell without quantity", func(t *testing.T) {
		it := NewSellItem(SellParams{Wallet: testWallet(), Token: testToken()})
		assert.ErrorIs(t, it.Validate(), ErrInvalidItem)
	})

	t.Run("missing wallet", func(t *testing.T) {
		it := NewSellItem(SellParams{Token: testToken(), Quantity: 1})
		assert.ErrorIs(t, it.Validate(), ErrInvalidItem)
	})

	t.Run("conflicting payloads", func(t *testing.T) {
		it := NewBuyItem(BuyParams{Wallet: testWallet(), Token: testToken(), SpendBNB: 0.5})
		it.Sell = &SellParams{Wallet: testWallet(), Token: testToken(), Quantity: 1}
		assert.ErrorIs(t, it.Validate(), ErrInvalidItem)
	})

	t.Run("valid approve", func(t *testing.T) {
		it := NewApproveItem(ApproveParams{Wallet: testWallet(), Token: testToken()})
		assert.NoError(t, it.Validate())
	})
}

func TestExecItemSettleOnce(t *testing.T) {
	it := NewBuyItem(BuyParams{Wallet: testWallet(), Token: testToken(), SpendBNB: 0.5})

	it.Settle(ExecCompleted, ExecResult{Success: true, TxHash: "0xabc"})
	// A later settle must not flip the terminal state.
	it.Settle(ExecFailed, ExecResult{Err: "too late"})

	assert.Equal(t, ExecCompleted, it.Status())
	assert.Equal(t, "0xabc", it.Result().TxHash)
	assert.True(t, it.Result().Success)
}

func TestExecItemAwait(t *testing.T) {
	t.Run("settled before timeout", func(t *testing.T) {
		it := NewSellItem(SellParams{Wallet: testWallet(), Token: testToken(), Quantity: 10})
		go func() {
			time.Sleep(10 * time.Millisecond)
			it.Settle(ExecCompleted, ExecResult{Success: true, AmountOut: 1.5})
		}()

		res, err := it.Await(context.Background(), time.Second)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 1.5, res.AmountOut)
	})

	t.Run("timeout", func(t *testing.T) {
		it := NewSellItem(SellParams{Wallet: testWallet(), Token: testToken(), Quantity: 10})
		_, err := it.Await(context.Background(), 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrAwaitTimeout)
		// The item itself is still pending; the queue owns its fate.
		assert.Equal(t, ExecPending, it.Status())
	})

	t.Run("context cancelled", func(t *testing.T) {
		it := NewSellItem(SellParams{Wallet: testWallet(), Token: testToken(), Quantity: 10})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := it.Await(ctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExecItemRetryBudget(t *testing.T) {
	it := NewBuyItem(BuyParams{Wallet: testWallet(), Token: testToken(), SpendBNB: 0.5})
	it.MaxRetries = 2

	assert.True(t, it.MarkRetry())
	assert.True(t, it.MarkRetry())
	assert.False(t, it.MarkRetry())
	assert.Equal(t, 2, it.RetryCount())
}

func TestExecItemWallet(t *testing.T) {
	buy := NewBuyItem(BuyParams{Wallet: testWallet(), Token: testToken(), SpendBNB: 0.5})
	sell := NewSellItem(SellParams{Wallet: testWallet(), Token: testToken(), Quantity: 1})
	approve := NewApproveItem(ApproveParams{Wallet: testWallet(), Token: testToken()})

	assert.Equal(t, testWallet(), buy.Wallet())
	assert.Equal(t, testWallet(), sell.Wallet())
	assert.Equal(t, testWallet(), approve.Wallet())
}
