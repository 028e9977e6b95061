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

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, order_id, user_id, token_address, token_decimals, token_symbol,
	quantity, cost_basis, entry_price, current_price, pnl, pnl_percent,
	status, buy_tx_hash, take_profits, stop_losses, triggered_tp, triggered_sl,
	opened_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var tokenAddr, status string
	var decimals int16
	var tpJSON, slJSON []byte
	var triggeredTP, triggeredSL []int32

	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID,
		&tokenAddr, &decimals, &p.Token.Symbol,
		&p.Quantity, &p.CostBasis, &p.EntryPrice,
		&p.CurrentPrice, &p.PNL, &p.PNLPercent,
		&status, &p.BuyTxHash,
		&tpJSON, &slJSON, &triggeredTP, &triggeredSL,
		&p.OpenedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}

	p.Token.Address = common.HexToAddress(tokenAddr)
	p.Token.Decimals = uint8(decimals)
	p.Status = domain.PositionStatus(status)
	if len(tpJSON) > 0 {
		if err := json.Unmarshal(tpJSON, &p.TakeProfits); err != nil {
			return domain.Position{}, fmt.Errorf("postgres: decode take profits: %w", err)
		}
	}
	if len(slJSON) > 0 {
		if err := json.Unmarshal(slJSON, &p.StopLosses); err != nil {
			return domain.Position{}, fmt.Errorf("postgres: decode stop losses: %w", err)
		}
	}
	p.TriggeredTP = toInts(triggeredTP)
	p.TriggeredSL = toInts(triggeredSL)
	return p, nil
}

func toInts(in []int32) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func toInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

// Create inserts a new position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	tpJSON, err := json.Marshal(p.TakeProfits)
	if err != nil {
		return fmt.Errorf("postgres: encode take profits: %w", err)
	}
	slJSON, err := json.Marshal(p.StopLosses)
	if err != nil {
		return fmt.Errorf("postgres: encode stop losses: %w", err)
	}

	const query = `
		INSERT INTO positions (
			id, order_id, user_id, token_address, token_decimals, token_symbol,
			quantity, cost_basis, entry_price, current_price, pnl, pnl_percent,
			status, buy_tx_hash, take_profits, stop_losses, triggered_tp, triggered_sl,
			opened_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.OrderID, p.UserID,
		p.Token.Address.Hex(), int16(p.Token.Decimals), p.Token.Symbol,
		p.Quantity, p.CostBasis, p.EntryPrice,
		p.CurrentPrice, p.PNL, p.PNLPercent,
		string(p.Status), p.BuyTxHash,
		tpJSON, slJSON, toInt32s(p.TriggeredTP), toInt32s(p.TriggeredSL),
		p.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// Update replaces the mutable fields of a position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	tpJSON, err := json.Marshal(p.TakeProfits)
	if err != nil {
		return fmt.Errorf("postgres: encode take profits: %w", err)
	}
	slJSON, err := json.Marshal(p.StopLosses)
	if err != nil {
		return fmt.Errorf("postgres: encode stop losses: %w", err)
	}

	const query = `
		UPDATE positions SET
			quantity      = $2,
			cost_basis    = $3,
			entry_price   = $4,
			current_price = $5,
			pnl           = $6,
			pnl_percent   = $7,
			status        = $8,
			buy_tx_hash   = $9,
			take_profits  = $10,
			stop_losses   = $11,
			updated_at    = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Quantity, p.CostBasis, p.EntryPrice,
		p.CurrentPrice, p.PNL, p.PNLPercent,
		string(p.Status), p.BuyTxHash,
		tpJSON, slJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePrice persists only the live price and PNL snapshot.
func (s *PositionStore) UpdatePrice(ctx context.Context, id string, price, pnl, pnlPercent float64) error {
	const query = `
		UPDATE positions SET
			current_price = $2,
			pnl           = $3,
			pnl_percent   = $4,
			updated_at    = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, price, pnl, pnlPercent)
	if err != nil {
		return fmt.Errorf("postgres: update price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a position's persistent record.
func (s *PositionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single position.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListOpen returns every position whose status is not closed.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status <> 'closed'
		 ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// MarkLevelTriggered atomically adds the index to the triggered set when
// absent. The conditional UPDATE only matches when the index is missing, so
// concurrent callers race on the row lock and at most one observes added=true.
func (s *PositionStore) MarkLevelTriggered(ctx context.Context, id string, kind domain.LevelKind, index int) ([]int, bool, error) {
	col := "triggered_tp"
	if kind == domain.LevelStopLoss {
		col = "triggered_sl"
	}

	update := fmt.Sprintf(`
		UPDATE positions
		SET %s = array_append(%s, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(%s))
		RETURNING %s`, col, col, col, col)

	var triggered []int32
	err := s.pool.QueryRow(ctx, update, id, int32(index)).Scan(&triggered)
	if err == nil {
		return toInts(triggered), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("postgres: mark level triggered %s[%d]: %w", id, index, err)
	}

	// Already present, or the position is gone. Read back the current set.
	sel := fmt.Sprintf(`SELECT %s FROM positions WHERE id = $1`, col)
	err = s.pool.QueryRow(ctx, sel, id).Scan(&triggered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, fmt.Errorf("postgres: read triggered set %s: %w", id, err)
	}
	return toInts(triggered), false, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
