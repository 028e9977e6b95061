package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// DefaultPriceTTL keeps a sample alive long enough for one monitoring cycle
// but never across two.
const DefaultPriceTTL = 2 * time.Second

// PriceCache implements domain.PriceCache using Redis hashes. Each token's
// sample lives at "price:{address}" with a short TTL; expiry is the cache's
// whole point, so the TTL is applied on every write.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. A
// non-positive ttl falls back to DefaultPriceTTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(token string) string {
	return "price:" + token
}

// Set stores a price sample under the cache TTL.
func (pc *PriceCache) Set(ctx context.Context, token string, s domain.PriceSample) error {
	key := priceKey(token)
	fields := map[string]interface{}{
		"price":         s.Price,
		"reserve_base":  s.ReserveBase,
		"reserve_token": s.ReserveToken,
		"token_is_t0":   boolField(s.TokenIsToken0),
		"ts":            s.Timestamp.UnixNano(),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", token, err)
	}
	return nil
}

// Get retrieves a live sample, or domain.ErrNotFound once it has expired.
func (pc *PriceCache) Get(ctx context.Context, token string) (domain.PriceSample, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(token)).Result()
	if err != nil {
		return domain.PriceSample{}, fmt.Errorf("redis: get price %s: %w", token, err)
	}
	s, ok := parseSample(vals)
	if !ok {
		return domain.PriceSample{}, domain.ErrNotFound
	}
	return s, nil
}

// GetBatch retrieves live samples for many tokens with one pipeline round
// trip. Expired or missing tokens are omitted.
func (pc *PriceCache) GetBatch(ctx context.Context, tokens []string) (map[string]domain.PriceSample, error) {
	if len(tokens) == 0 {
		return map[string]domain.PriceSample{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tokens))
	for _, t := range tokens {
		cmds[t] = pipe.HGetAll(ctx, priceKey(t))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]domain.PriceSample, len(tokens))
	for t, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if s, ok := parseSample(vals); ok {
			result[t] = s
		}
	}
	return result, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseSample(vals map[string]string) (domain.PriceSample, bool) {
	if len(vals) == 0 {
		return domain.PriceSample{}, false
	}
	var s domain.PriceSample
	var tsNano int64
	if _, err := fmt.Sscan(vals["price"], &s.Price); err != nil {
		return domain.PriceSample{}, false
	}
	fmt.Sscan(vals["reserve_base"], &s.ReserveBase)
	fmt.Sscan(vals["reserve_token"], &s.ReserveToken)
	s.TokenIsToken0 = vals["token_is_t0"] == "1" || vals["token_is_t0"] == "true"
	if _, err := fmt.Sscan(vals["ts"], &tsNano); err == nil {
		s.Timestamp = time.Unix(0, tsNano)
	}
	return s, true
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
