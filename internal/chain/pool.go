package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

const factoryABIJSON = `[
	{"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"type":"function"}
]`

const pairABIJSON = `[
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var (
	factoryABI = mustABI(factoryABIJSON)
	pairABI    = mustABI(pairABIJSON)
)

// PoolReader resolves token/WBNB pairs through the factory and reads their
// reserves. It implements domain.PoolReader.
type PoolReader struct {
	client  *Client
	factory common.Address
	wbnb    common.Address
}

// NewPoolReader creates a PoolReader against the given factory and base
// currency (WBNB) addresses.
func NewPoolReader(client *Client, factory, wbnb common.Address) *PoolReader {
	return &PoolReader{client: client, factory: factory, wbnb: wbnb}
}

// FindPool asks the factory for the token/WBNB pair and determines which side
// the token occupies. It returns domain.ErrNoPool for unknown pairs.
func (r *PoolReader) FindPool(ctx context.Context, token common.Address) (domain.Pool, error) {
	out, err := r.client.call(ctx, r.factory, factoryABI, "getPair", token, r.wbnb)
	if err != nil {
		return domain.Pool{}, err
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return domain.Pool{}, fmt.Errorf("chain: unexpected getPair output for %s", token.Hex())
	}
	if pair == (common.Address{}) {
		return domain.Pool{}, domain.ErrNoPool
	}

	out, err = r.client.call(ctx, pair, pairABI, "token0")
	if err != nil {
		return domain.Pool{}, err
	}
	token0, ok := out[0].(common.Address)
	if !ok {
		return domain.Pool{}, fmt.Errorf("chain: unexpected token0 output for %s", pair.Hex())
	}

	return domain.Pool{
		Pair:          pair,
		TokenIsToken0: token0 == token,
	}, nil
}

// GetReserves reads the pair's current reserve balances.
func (r *PoolReader) GetReserves(ctx context.Context, pair common.Address) (domain.PoolReserves, error) {
	out, err := r.client.call(ctx, pair, pairABI, "getReserves")
	if err != nil {
		return domain.PoolReserves{}, err
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return domain.PoolReserves{}, fmt.Errorf("chain: unexpected getReserves output for %s", pair.Hex())
	}
	return domain.PoolReserves{Reserve0: r0, Reserve1: r1}, nil
}

// Compile-time interface check.
var _ domain.PoolReader = (*PoolReader)(nil)
