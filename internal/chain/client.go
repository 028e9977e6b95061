// Package chain implements the on-chain adapters (balances, pools, receipts,
// and the DEX router exchange) on top of go-ethereum.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var erc20ABI = mustABI(erc20ABIJSON)

func mustABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Client wraps an ethclient connection and implements the read-side chain
// adapters: domain.BalanceReader and domain.ReceiptReader.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	logger  *slog.Logger
}

// New dials the RPC endpoint and verifies the reported chain id when a
// non-zero expectation is configured.
func New(ctx context.Context, rpcURL string, expectChainID int64, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if expectChainID != 0 && chainID.Int64() != expectChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: rpc reports chain id %d, expected %d", chainID.Int64(), expectChainID)
	}

	return &Client{
		eth:     eth,
		chainID: chainID,
		logger:  logger.With(slog.String("component", "chain")),
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the connected chain's id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Eth exposes the underlying client for sub-adapters.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// call performs a read-only contract call and unpacks the outputs.
func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, contract.Hex(), err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

// GetBalance returns the wallet's native balance in BNB.
func (c *Client) GetBalance(ctx context.Context, wallet common.Address) (float64, error) {
	wei, err := c.eth.BalanceAt(ctx, wallet, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: balance of %s: %w", wallet.Hex(), err)
	}
	return domain.FromWei(wei, 18), nil
}

// GetTokenBalance returns the wallet's token balance in human units.
func (c *Client) GetTokenBalance(ctx context.Context, wallet common.Address, token domain.TokenInfo) (float64, error) {
	out, err := c.call(ctx, token.Address, erc20ABI, "balanceOf", wallet)
	if err != nil {
		return 0, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("chain: unexpected balanceOf output for %s", token.Key())
	}
	return domain.FromWei(raw, token.Decimals), nil
}

// ConfirmTx reports whether the transaction is mined and succeeded. A receipt
// that does not exist yet is not an error.
func (c *Client) ConfirmTx(ctx context.Context, txHash string) (confirmed, success bool, err error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("chain: receipt %s: %w", txHash, err)
	}
	return true, receipt.Status == 1, nil
}

// TokenMetadata reads a token's decimals and symbol from chain.
func (c *Client) TokenMetadata(ctx context.Context, token common.Address) (domain.TokenInfo, error) {
	info := domain.TokenInfo{Address: token}

	out, err := c.call(ctx, token, erc20ABI, "decimals")
	if err != nil {
		return domain.TokenInfo{}, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return domain.TokenInfo{}, fmt.Errorf("chain: unexpected decimals output for %s", token.Hex())
	}
	info.Decimals = dec

	// Symbol is cosmetic; tolerate tokens that misbehave here.
	if out, err := c.call(ctx, token, erc20ABI, "symbol"); err == nil {
		if sym, ok := out[0].(string); ok {
			info.Symbol = sym
		}
	}
	return info, nil
}

// Compile-time interface checks.
var (
	_ domain.BalanceReader = (*Client)(nil)
	_ domain.ReceiptReader = (*Client)(nil)
)
