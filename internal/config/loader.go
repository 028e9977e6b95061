package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FMBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FMBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "FMBOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "FMBOT_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.Factory, "FMBOT_CHAIN_FACTORY")
	setStr(&cfg.Chain.Router, "FMBOT_CHAIN_ROUTER")
	setStr(&cfg.Chain.WBNB, "FMBOT_CHAIN_WBNB")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "FMBOT_WALLET_PRIVATE_KEY")

	// ── Database ──
	setStr(&cfg.Database.DSN, "FMBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "FMBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "FMBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "FMBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "FMBOT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "FMBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "FMBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "FMBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "FMBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "FMBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "FMBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FMBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FMBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FMBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FMBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FMBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FMBOT_REDIS_TLS_ENABLED")

	// ── Queue ──
	setDuration(&cfg.Queue.PollInterval, "FMBOT_QUEUE_POLL_INTERVAL")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "FMBOT_MONITOR_INTERVAL")
	setInt(&cfg.Monitor.ExecTimeoutSec, "FMBOT_MONITOR_EXEC_TIMEOUT_SEC")
	setFloat64(&cfg.Monitor.GasHeadroom, "FMBOT_MONITOR_GAS_HEADROOM")
	setDuration(&cfg.Monitor.PriceTTL, "FMBOT_MONITOR_PRICE_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FMBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FMBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "FMBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "FMBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FMBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.DiscordWebhookURL, "FMBOT_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "FMBOT_MODE")
	setStr(&cfg.LogLevel, "FMBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
