package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// OrderStore implements domain.OrderReader using PostgreSQL. Orders are
// written by the presentation layer; the core only reads them.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// GetOrder returns the per-order trading parameters.
func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (domain.OrderSettings, error) {
	const query = `
		SELECT id, user_id, wallet, active, slippage_bps,
		       gas_price_gwei, gas_limit, gas_cost_bnb,
		       take_profits, stop_losses, take_profit_pct, stop_loss_pct,
		       time_limit_sec
		FROM orders WHERE id = $1`

	var o domain.OrderSettings
	var wallet string
	var tpJSON, slJSON []byte

	err := s.pool.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.UserID, &wallet, &o.Active, &o.SlippageBps,
		&o.Gas.PriceGwei, &o.Gas.Limit, &o.GasCostBNB,
		&tpJSON, &slJSON, &o.TakeProfitPct, &o.StopLossPct,
		&o.TimeLimitSec,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderSettings{}, domain.ErrNotFound
		}
		return domain.OrderSettings{}, fmt.Errorf("postgres: get order %s: %w", orderID, err)
	}

	o.Wallet = common.HexToAddress(wallet)
	if len(tpJSON) > 0 {
		if err := json.Unmarshal(tpJSON, &o.TakeProfits); err != nil {
			return domain.OrderSettings{}, fmt.Errorf("postgres: decode order take profits: %w", err)
		}
	}
	if len(slJSON) > 0 {
		if err := json.Unmarshal(slJSON, &o.StopLosses); err != nil {
			return domain.OrderSettings{}, fmt.Errorf("postgres: decode order stop losses: %w", err)
		}
	}
	return o, nil
}

// IsPositionExempt reports the explicit automation exemption flag for the
// position. Unknown positions are not exempt.
func (s *OrderStore) IsPositionExempt(ctx context.Context, positionID string) (bool, error) {
	var exempt bool
	err := s.pool.QueryRow(ctx,
		`SELECT automation_exempt FROM positions WHERE id = $1`, positionID,
	).Scan(&exempt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: exemption flag %s: %w", positionID, err)
	}
	return exempt, nil
}

// Compile-time interface check.
var _ domain.OrderReader = (*OrderStore)(nil)
