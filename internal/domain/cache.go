package domain

import (
	"context"
	"time"
)

// PriceCache stores recent price samples with a short TTL so one monitoring
// cycle never pays for the same pool read twice.
type PriceCache interface {
	Set(ctx context.Context, token string, sample PriceSample) error
	// Get returns ErrNotFound when the sample is absent or expired.
	Get(ctx context.Context, token string) (PriceSample, error)
	// GetBatch returns the samples that exist; missing tokens are omitted.
	GetBatch(ctx context.Context, tokens []string) (map[string]PriceSample, error)
}

// LockManager provides distributed locking, used to fence trigger execution
// for one position across overlapping cycles or replicas.
type LockManager interface {
	// Acquire returns ErrLockHeld when another holder owns the key. The
	// returned unlock func is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
