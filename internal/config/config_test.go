package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "ab" // any non-empty hex
	return cfg
}

func TestDefaultsValidateForMonitorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	// Monitor mode signs nothing; no key needed.
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresWalletForTrade(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet: private_key")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Chain.RPCURL = ""
	cfg.Redis.Addr = ""
	cfg.Monitor.GasHeadroom = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "chain: rpc_url")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "monitor: gas_headroom")
}

func TestValidatePoolBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Database.PoolMinConns = 20
	cfg.Database.PoolMaxConns = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_min_conns must not exceed pool_max_conns")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"
log_level = "debug"

[chain]
rpc_url = "https://rpc.example"

[monitor]
interval = "5s"
gas_headroom = 2.0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://rpc.example", cfg.Chain.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, 2.0, cfg.Monitor.GasHeadroom)

	// Untouched values keep their defaults.
	assert.Equal(t, int64(56), cfg.Chain.ChainID)
	assert.Equal(t, 120, cfg.Monitor.ExecTimeoutSec)
	assert.Equal(t, time.Second, cfg.Queue.PollInterval.Duration)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "monitor"`), 0o600))

	t.Setenv("FMBOT_WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("FMBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FMBOT_MONITOR_INTERVAL", "3s")
	t.Setenv("FMBOT_MODE", "trade")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 3*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, "trade", cfg.Mode)
}
