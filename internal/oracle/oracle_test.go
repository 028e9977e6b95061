package oracle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

type poolEntry struct {
	pool     domain.Pool
	reserves domain.PoolReserves
}

// fakePools serves pools and reserves from memory and counts lookups.
type fakePools struct {
	mu            sync.Mutex
	entries       map[common.Address]poolEntry // keyed by token
	byPair        map[common.Address]domain.PoolReserves
	findCalls     int
	reservesCalls int
}

func newFakePools() *fakePools {
	return &fakePools{
		entries: make(map[common.Address]poolEntry),
		byPair:  make(map[common.Address]domain.PoolReserves),
	}
}

func (f *fakePools) add(token domain.TokenInfo, pairHex string, tokenReserve, baseReserve *big.Int, tokenIsToken0 bool) {
	pair := common.HexToAddress(pairHex)
	r0, r1 := tokenReserve, baseReserve
	if !tokenIsToken0 {
		r0, r1 = baseReserve, tokenReserve
	}
	reserves := domain.PoolReserves{Reserve0: r0, Reserve1: r1}
	f.entries[token.Address] = poolEntry{
		pool:     domain.Pool{Pair: pair, TokenIsToken0: tokenIsToken0},
		reserves: reserves,
	}
	f.byPair[pair] = reserves
}

func (f *fakePools) FindPool(_ context.Context, token common.Address) (domain.Pool, error) {
	f.mu.Lock()
	f.findCalls++
	f.mu.Unlock()
	e, ok := f.entries[token]
	if !ok {
		return domain.Pool{}, domain.ErrNoPool
	}
	return e.pool, nil
}

func (f *fakePools) GetReserves(_ context.Context, pair common.Address) (domain.PoolReserves, error) {
	f.mu.Lock()
	f.reservesCalls++
	f.mu.Unlock()
	r, ok := f.byPair[pair]
	if !ok {
		return domain.PoolReserves{}, domain.ErrNoPool
	}
	return r, nil
}

// fakeCache is an in-memory PriceCache with no expiry.
type fakeCache struct {
	mu      sync.Mutex
	samples map[string]domain.PriceSample
}

func newFakeCache() *fakeCache {
	return &fakeCache{samples: make(map[string]domain.PriceSample)}
}

func (c *fakeCache) Set(_ context.Context, token string, s domain.PriceSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[token] = s
	return nil
}

func (c *fakeCache) Get(_ context.Context, token string) (domain.PriceSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.samples[token]
	if !ok {
		return domain.PriceSample{}, domain.ErrNotFound
	}
	return s, nil
}

func (c *fakeCache) GetBatch(_ context.Context, tokens []string) (map[string]domain.PriceSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.PriceSample)
	for _, t := range tokens {
		if s, ok := c.samples[t]; ok {
			out[t] = s
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokenN(n int) domain.TokenInfo {
	return domain.TokenInfo{
		Address:  common.HexToAddress(fmt.Sprintf("0x%040x", n+1)),
		Decimals: 18,
		Symbol:   fmt.Sprintf("TK%d", n),
	}
}

// bnb converts a float amount of an 18-decimals asset to wei.
func bnb(amount float64) *big.Int {
	return domain.ToWei(amount, 18)
}

func TestGetPriceFromReserves(t *testing.T) {
	pools := newFakePools()
	tok := tokenN(0)
	// 1,000,000 tokens against 100 BNB: 0.0001 BNB per token.
	pools.add(tok, "0x00000000000000000000000000000000000000aa", bnb(1_000_000), bnb(100), true)

	o := New(pools, newFakeCache(), testLogger())
	sample, ok, err := o.GetPrice(context.Background(), tok)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.0001, sample.Price, 1e-12)
	assert.InDelta(t, 100, sample.ReserveBase, 1e-6)
	assert.InDelta(t, 1_000_000, sample.ReserveToken, 1e-3)
}

func TestGetPriceOrientsByToken0(t *testing.T) {
	pools := newFakePools()
	tok := tokenN(0)
	// Same pool but with the token on the token1 side.
	pools.add(tok, "0x00000000000000000000000000000000000000ab", bnb(1_000_000), bnb(100), false)

	o := New(pools, newFakeCache(), testLogger())
	sample, ok, err := o.GetPrice(context.Background(), tok)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.0001, sample.Price, 1e-12)
}

func TestBatchOmitsPoollessTokens(t *testing.T) {
	pools := newFakePools()
	tokens := make([]domain.TokenInfo, 5)
	for i := range tokens {
		tokens[i] = tokenN(i)
		if i == 3 {
			continue // no pool for this one
		}
		pools.add(tokens[i], fmt.Sprintf("0x%039xa", i+1), bnb(1000), bnb(float64(i+1)), true)
	}

	o := New(pools, newFakeCache(), testLogger())
	samples, err := o.GetPricesBatch(context.Background(), tokens)
	require.NoError(t, err)

	assert.Len(t, samples, 4)
	_, ok := samples[tokens[3].Key()]
	assert.False(t, ok)
}

func TestBatchDeduplicatesTokens(t *testing.T) {
	pools := newFakePools()
	tok := tokenN(0)
	pools.add(tok, "0x00000000000000000000000000000000000000aa", bnb(1000), bnb(1), true)

	o := New(pools, newFakeCache(), testLogger())
	samples, err := o.GetPricesBatch(context.Background(), []domain.TokenInfo{tok, tok, tok})
	require.NoError(t, err)

	assert.Len(t, samples, 1)
	assert.Equal(t, 1, pools.reservesCalls)
}

func TestCacheHitShortCircuitsPoolReads(t *testing.T) {
	pools := newFakePools()
	tok := tokenN(0)
	pools.add(tok, "0x00000000000000000000000000000000000000aa", bnb(1000), bnb(1), true)

	cache := newFakeCache()
	o := New(pools, cache, testLogger())
	ctx := context.Background()

	_, err := o.GetPricesBatch(ctx, []domain.TokenInfo{tok})
	require.NoError(t, err)
	assert.Equal(t, 1, pools.reservesCalls)

	// Second round hits the sample cache; no reserve read.
	_, err = o.GetPricesBatch(ctx, []domain.TokenInfo{tok})
	require.NoError(t, err)
	assert.Equal(t, 1, pools.reservesCalls)
}

func TestPoolResolutionCachedForever(t *testing.T) {
	pools := newFakePools()
	tok := tokenN(0)
	pools.add(tok, "0x00000000000000000000000000000000000000aa", bnb(1000), bnb(1), true)

	// Empty price cache each round forces reserve reads, but the pool lookup
	// happens only once.
	o := New(pools, newFakeCache(), testLogger())
	ctx := context.Background()

	for range 3 {
		o.cache = newFakeCache()
		_, _, err := o.GetPrice(ctx, tok)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, pools.findCalls)
	assert.Equal(t, 3, pools.reservesCalls)
}

func TestDrainedPoolUnpriceable(t *testing.T) {
	pools := newFakePools()
	tok := tokenN(0)
	pools.add(tok, "0x00000000000000000000000000000000000000aa", bnb(1000), big.NewInt(0), true)

	o := New(pools, newFakeCache(), testLogger())
	_, ok, err := o.GetPrice(context.Background(), tok)
	require.NoError(t, err)
	assert.False(t, ok)
}
