// Package oracle derives token valuations from constant-product pool reserves.
// The batch path resolves each token's pool once (cached for the process
// lifetime), fetches reserves for all pools in parallel, and caches samples
// with a short TTL so repeated lookups within one monitoring cycle hit cache.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// baseDecimals is the precision of the base currency (WBNB).
const baseDecimals = 18

// Oracle prices tokens against the base currency via their pools.
type Oracle struct {
	pools  domain.PoolReader
	cache  domain.PriceCache
	logger *slog.Logger

	// resolved pools never change; cache them forever.
	poolCache sync.Map // token hex -> domain.Pool

	maxParallel int
}

// New creates an Oracle reading pools through pools and caching samples in
// cache.
func New(pools domain.PoolReader, cache domain.PriceCache, logger *slog.Logger) *Oracle {
	return &Oracle{
		pools:       pools,
		cache:       cache,
		logger:      logger.With(slog.String("component", "oracle")),
		maxParallel: 8,
	}
}

// GetPrice returns the current valuation of a single token. ok is false when
// the token is temporarily unpriceable (no pool, or a drained side).
func (o *Oracle) GetPrice(ctx context.Context, token domain.TokenInfo) (domain.PriceSample, bool, error) {
	samples, err := o.GetPricesBatch(ctx, []domain.TokenInfo{token})
	if err != nil {
		return domain.PriceSample{}, false, err
	}
	s, ok := samples[token.Key()]
	return s, ok, nil
}

// GetPricesBatch prices all distinct tokens in one round. Unpriceable tokens
// are omitted from the result, never reported as errors. The returned map is
// keyed by token hex address.
func (o *Oracle) GetPricesBatch(ctx context.Context, tokens []domain.TokenInfo) (map[string]domain.PriceSample, error) {
	distinct := make(map[string]domain.TokenInfo, len(tokens))
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, seen := distinct[t.Key()]; !seen {
			distinct[t.Key()] = t
			keys = append(keys, t.Key())
		}
	}

	out := make(map[string]domain.PriceSample, len(distinct))

	// Cache pass: a hit short-circuits the pool and reserve lookups.
	cached, err := o.cache.GetBatch(ctx, keys)
	if err != nil {
		o.logger.WarnContext(ctx, "oracle: price cache read failed",
			slog.String("error", err.Error()),
		)
	} else {
		for k, s := range cached {
			out[k] = s
			delete(distinct, k)
		}
	}
	if len(distinct) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallel)

	for key, token := range distinct {
		g.Go(func() error {
			sample, ok := o.fetch(gctx, token)
			if !ok {
				return nil
			}
			mu.Lock()
			out[key] = sample
			mu.Unlock()

			if err := o.cache.Set(gctx, key, sample); err != nil {
				o.logger.WarnContext(gctx, "oracle: price cache write failed",
					slog.String("token", key),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// fetch resolves the token's pool and derives a price sample from its
// reserves. ok is false when the token has no price this cycle.
func (o *Oracle) fetch(ctx context.Context, token domain.TokenInfo) (domain.PriceSample, bool) {
	pool, err := o.resolvePool(ctx, token.Address)
	if err != nil {
		if !errors.Is(err, domain.ErrNoPool) {
			o.logger.WarnContext(ctx, "oracle: pool resolution failed",
				slog.String("token", token.Key()),
				slog.String("error", err.Error()),
			)
		}
		return domain.PriceSample{}, false
	}

	reserves, err := o.pools.GetReserves(ctx, pool.Pair)
	if err != nil {
		o.logger.WarnContext(ctx, "oracle: reserve read failed",
			slog.String("token", token.Key()),
			slog.String("pair", pool.Pair.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.PriceSample{}, false
	}

	tokenRes, baseRes := reserves.Reserve0, reserves.Reserve1
	if !pool.TokenIsToken0 {
		tokenRes, baseRes = reserves.Reserve1, reserves.Reserve0
	}

	tokenUnits := domain.FromWei(tokenRes, token.Decimals)
	baseUnits := domain.FromWei(baseRes, baseDecimals)
	if tokenUnits <= 0 || baseUnits <= 0 {
		return domain.PriceSample{}, false
	}

	return domain.PriceSample{
		Price:         baseUnits / tokenUnits,
		ReserveBase:   baseUnits,
		ReserveToken:  tokenUnits,
		TokenIsToken0: pool.TokenIsToken0,
		Timestamp:     time.Now().UTC(),
	}, true
}

func (o *Oracle) resolvePool(ctx context.Context, token common.Address) (domain.Pool, error) {
	if v, ok := o.poolCache.Load(token.Hex()); ok {
		return v.(domain.Pool), nil
	}
	pool, err := o.pools.FindPool(ctx, token)
	if err != nil {
		return domain.Pool{}, err
	}
	o.poolCache.Store(token.Hex(), pool)
	return pool, nil
}
