package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

const routerABIJSON = `[
	{"constant":true,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"type":"function"},
	{"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactETHForTokensSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForETHSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var routerABI = mustABI(routerABIJSON)

// maxApproval is the unlimited ERC-20 allowance (2^256 - 1).
var maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const (
	swapDeadline   = 2 * time.Minute
	defaultGas     = 500_000
	confirmTimeout = 2 * time.Minute
)

// Dex implements the exchange capability against a Pancake-style router. It
// signs with a single configured key; submissions for any other wallet are
// rejected. Sells handle spend-allowance checks and auto-approval themselves.
type Dex struct {
	client *Client
	router common.Address
	wbnb   common.Address
	key    *ecdsa.PrivateKey
	wallet common.Address
	logger *slog.Logger
}

// NewDex creates a Dex signing with the given hex-encoded private key.
func NewDex(client *Client, router, wbnb common.Address, privateKeyHex string, logger *slog.Logger) (*Dex, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}
	return &Dex{
		client: client,
		router: router,
		wbnb:   wbnb,
		key:    key,
		wallet: crypto.PubkeyToAddress(key.PublicKey),
		logger: logger.With(slog.String("component", "dex")),
	}, nil
}

// Wallet returns the address the Dex signs for.
func (d *Dex) Wallet() common.Address {
	return d.wallet
}

func (d *Dex) checkWallet(wallet common.Address) error {
	if wallet != d.wallet {
		return fmt.Errorf("chain: no key for wallet %s", wallet.Hex())
	}
	return nil
}

// Buy spends spendBNB of the base currency on token and returns the received
// quantity measured as the wallet's balance delta, which stays correct for
// fee-on-transfer tokens.
func (d *Dex) Buy(ctx context.Context, wallet common.Address, token domain.TokenInfo, spendBNB float64, slippageBps int, gas domain.GasSettings) (domain.TradeResult, error) {
	if err := d.checkWallet(wallet); err != nil {
		return domain.TradeResult{}, err
	}

	spendWei := domain.ToWei(spendBNB, 18)
	path := []common.Address{d.wbnb, token.Address}

	minOut, err := d.minAmountOut(ctx, spendWei, path, slippageBps)
	if err != nil {
		return domain.TradeResult{}, err
	}

	before, err := d.client.GetTokenBalance(ctx, wallet, token)
	if err != nil {
		return domain.TradeResult{}, err
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := routerABI.Pack("swapExactETHForTokensSupportingFeeOnTransferTokens", minOut, path, wallet, deadline)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: pack buy: %w", err)
	}

	receipt, txHash, err := d.submit(ctx, d.router, spendWei, data, gas)
	if err != nil {
		return domain.TradeResult{TxHash: txHash}, err
	}
	if receipt.Status != 1 {
		return domain.TradeResult{TxHash: txHash}, fmt.Errorf("chain: buy %s: %w", token.Key(), domain.ErrTransactionFailed)
	}

	after, err := d.client.GetTokenBalance(ctx, wallet, token)
	if err != nil {
		return domain.TradeResult{TxHash: txHash}, err
	}

	return domain.TradeResult{TxHash: txHash, AmountOut: after - before}, nil
}

// Sell swaps quantity of token back into the base currency, approving the
// router first when the current allowance is insufficient.
func (d *Dex) Sell(ctx context.Context, wallet common.Address, token domain.TokenInfo, quantity float64, slippageBps int, gas domain.GasSettings) (domain.TradeResult, error) {
	if err := d.checkWallet(wallet); err != nil {
		return domain.TradeResult{}, err
	}

	amountIn := domain.ToWei(quantity, token.Decimals)

	if err := d.ensureAllowance(ctx, wallet, token, amountIn, gas); err != nil {
		return domain.TradeResult{}, err
	}

	path := []common.Address{token.Address, d.wbnb}
	minOut, err := d.minAmountOut(ctx, amountIn, path, slippageBps)
	if err != nil {
		return domain.TradeResult{}, err
	}

	before, err := d.client.GetBalance(ctx, wallet)
	if err != nil {
		return domain.TradeResult{}, err
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := routerABI.Pack("swapExactTokensForETHSupportingFeeOnTransferTokens", amountIn, minOut, path, wallet, deadline)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: pack sell: %w", err)
	}

	receipt, txHash, err := d.submit(ctx, d.router, nil, data, gas)
	if err != nil {
		return domain.TradeResult{TxHash: txHash}, err
	}
	if receipt.Status != 1 {
		return domain.TradeResult{TxHash: txHash}, fmt.Errorf("chain: sell %s: %w", token.Key(), domain.ErrTransactionFailed)
	}

	after, err := d.client.GetBalance(ctx, wallet)
	if err != nil {
		return domain.TradeResult{TxHash: txHash}, err
	}

	// The balance delta underreports proceeds by the gas burned; add it back.
	gasCost := domain.FromWei(new(big.Int).Mul(
		new(big.Int).SetUint64(receipt.GasUsed),
		receipt.EffectiveGasPrice,
	), 18)

	return domain.TradeResult{TxHash: txHash, AmountOut: after - before + gasCost}, nil
}

// Approve grants the router an unlimited spend allowance over token.
func (d *Dex) Approve(ctx context.Context, wallet common.Address, token domain.TokenInfo, gas domain.GasSettings) (domain.TradeResult, error) {
	if err := d.checkWallet(wallet); err != nil {
		return domain.TradeResult{}, err
	}

	data, err := erc20ABI.Pack("approve", d.router, maxApproval)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("chain: pack approve: %w", err)
	}

	receipt, txHash, err := d.submit(ctx, token.Address, nil, data, gas)
	if err != nil {
		return domain.TradeResult{TxHash: txHash}, err
	}
	if receipt.Status != 1 {
		return domain.TradeResult{TxHash: txHash}, fmt.Errorf("chain: approve %s: %w", token.Key(), domain.ErrTransactionFailed)
	}
	return domain.TradeResult{TxHash: txHash}, nil
}

// ensureAllowance approves the router when the existing allowance cannot
// cover amountIn.
func (d *Dex) ensureAllowance(ctx context.Context, wallet common.Address, token domain.TokenInfo, amountIn *big.Int, gas domain.GasSettings) error {
	out, err := d.client.call(ctx, token.Address, erc20ABI, "allowance", wallet, d.router)
	if err != nil {
		return err
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return fmt.Errorf("chain: unexpected allowance output for %s", token.Key())
	}
	if allowance.Cmp(amountIn) >= 0 {
		return nil
	}

	d.logger.InfoContext(ctx, "dex: approving router",
		slog.String("token", token.Key()),
	)
	if _, err := d.Approve(ctx, wallet, token, gas); err != nil {
		return err
	}
	return nil
}

// minAmountOut quotes the swap and applies the slippage tolerance.
func (d *Dex) minAmountOut(ctx context.Context, amountIn *big.Int, path []common.Address, slippageBps int) (*big.Int, error) {
	out, err := d.client.call(ctx, d.router, routerABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, fmt.Errorf("chain: unexpected getAmountsOut output")
	}
	expected := amounts[len(amounts)-1]

	minOut := new(big.Int).Mul(expected, big.NewInt(int64(10000-slippageBps)))
	return minOut.Div(minOut, big.NewInt(10000)), nil
}

// submit signs and sends one transaction, then waits for it to mine within
// the confirmation timeout.
func (d *Dex) submit(ctx context.Context, to common.Address, value *big.Int, data []byte, gas domain.GasSettings) (*types.Receipt, string, error) {
	nonce, err := d.client.eth.PendingNonceAt(ctx, d.wallet)
	if err != nil {
		return nil, "", fmt.Errorf("chain: nonce: %w", err)
	}

	gasPrice := domain.ToWei(gas.PriceGwei, 9)
	if gasPrice.Sign() <= 0 {
		gasPrice, err = d.client.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("chain: gas price: %w", err)
		}
	}
	gasLimit := gas.Limit
	if gasLimit == 0 {
		gasLimit = defaultGas
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(d.client.chainID), d.key)
	if err != nil {
		return nil, "", fmt.Errorf("chain: sign tx: %w", err)
	}

	if err := d.client.eth.SendTransaction(ctx, signed); err != nil {
		return nil, signed.Hash().Hex(), fmt.Errorf("chain: send tx: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, d.client.eth, signed)
	if err != nil {
		return nil, signed.Hash().Hex(), fmt.Errorf("chain: wait mined %s: %w", signed.Hash().Hex(), err)
	}
	return receipt, signed.Hash().Hex(), nil
}

// Compile-time interface check.
var _ domain.Exchange = (*Dex)(nil)
