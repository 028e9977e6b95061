package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// memStore is an in-memory PositionStore mirroring the contract of the
// postgres implementation, including the conditional triggered-set insert.
type memStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newMemStore() *memStore {
	return &memStore{positions: make(map[string]domain.Position)}
}

func (s *memStore) Create(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[pos.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.positions[pos.ID] = pos
	return nil
}

func (s *memStore) Update(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[pos.ID]; !ok {
		return domain.ErrNotFound
	}
	s.positions[pos.ID] = pos
	return nil
}

func (s *memStore) UpdatePrice(_ context.Context, id string, price, pnl, pnlPercent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.CurrentPrice, p.PNL, p.PNLPercent = price, pnl, pnlPercent
	s.positions[id] = p
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.positions, id)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memStore) ListOpen(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.Status != domain.PositionClosed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) MarkLevelTriggered(_ context.Context, id string, kind domain.LevelKind, index int) ([]int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	set := p.TriggeredTP
	if kind == domain.LevelStopLoss {
		set = p.TriggeredSL
	}
	for _, i := range set {
		if i == index {
			return append([]int(nil), set...), false, nil
		}
	}
	set = append(set, index)
	if kind == domain.LevelStopLoss {
		p.TriggeredSL = set
	} else {
		p.TriggeredTP = set
	}
	s.positions[id] = p
	return append([]int(nil), set...), true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPosition(id string) domain.Position {
	return domain.Position{
		ID:      id,
		OrderID: "order-1",
		UserID:  42,
		Token: domain.TokenInfo{
			Address:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Decimals: 18,
			Symbol:   "TKN",
		},
		Quantity:   100,
		CostBasis:  10,
		EntryPrice: 0.1,
		Status:     domain.PositionActive,
		OpenedAt:   time.Now().UTC(),
	}
}

func TestAddAndGetReturnsCopy(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testPosition("p1")))

	got, ok := l.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Quantity)

	// Mutating the returned copy must not leak into the ledger.
	got.Quantity = 1
	got.TriggeredTP = append(got.TriggeredTP, 9)
	again, _ := l.Get("p1")
	assert.Equal(t, 100.0, again.Quantity)
	assert.Empty(t, again.TriggeredTP)
}

func TestUpdatePriceRecomputesPNL(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testPosition("p1")))
	require.NoError(t, l.UpdatePrice(ctx, "p1", 0.15))

	got, _ := l.Get("p1")
	assert.InDelta(t, 5.0, got.PNL, 1e-9)
	assert.InDelta(t, 50.0, got.PNLPercent, 1e-9)

	// Persisted snapshot matches.
	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, stored.PNLPercent, 1e-9)
}

func TestReduceQuantityRescalesCostBasis(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testPosition("p1")))

	// Sell 40%: cost basis keeps 60% of the spend; quantity comes from the
	// post-sell on-chain reading.
	require.NoError(t, l.ReduceQuantity(ctx, "p1", 40, 60))

	got, _ := l.Get("p1")
	assert.InDelta(t, 6.0, got.CostBasis, 1e-9)
	assert.InDelta(t, 60.0, got.Quantity, 1e-9)
}

func TestSetExitPendingGuard(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testPosition("p1")))

	require.NoError(t, l.SetExitPending("p1", true))
	assert.ErrorIs(t, l.SetExitPending("p1", true), domain.ErrExitAlreadyPending)
	require.NoError(t, l.SetExitPending("p1", false))
	require.NoError(t, l.SetExitPending("p1", true))

	assert.ErrorIs(t, l.SetExitPending("missing", true), domain.ErrNotFound)
}

func TestCloseRemovesPosition(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testPosition("p1")))
	require.NoError(t, l.Close(ctx, "p1", 0.2, "0xdead"))

	_, ok := l.Get("p1")
	assert.False(t, ok)
	_, err := store.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, l.Close(ctx, "p1", 0.2, ""), domain.ErrNotFound)
}

func TestMarkLevelTriggered(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testPosition("p1")))

	added, err := l.MarkLevelTriggered(ctx, "p1", domain.LevelTakeProfit, 0)
	require.NoError(t, err)
	assert.True(t, added)

	// A second marking of the same level is not an insertion.
	added, err = l.MarkLevelTriggered(ctx, "p1", domain.LevelTakeProfit, 0)
	require.NoError(t, err)
	assert.False(t, added)

	got, _ := l.Get("p1")
	assert.Equal(t, []int{0}, got.TriggeredTP)
}

func TestInitializeRepairsLegacyQuantity(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	damaged := testPosition("p1")
	// A holding smaller than one base unit of an 18-decimals token can only
	// come from the historical double-normalization defect.
	damaged.Quantity = 2.5e-19
	damaged.ExitPending = true
	require.NoError(t, store.Create(ctx, damaged))

	healthy := testPosition("p2")
	healthy.Quantity = 0.5
	require.NoError(t, store.Create(ctx, healthy))

	l := New(store, nil, testLogger())
	require.NoError(t, l.Initialize(ctx))

	got, ok := l.Get("p1")
	require.True(t, ok)
	assert.InDelta(t, 0.25, got.Quantity, 1e-9)
	// Stale exit flags die with the previous process.
	assert.False(t, got.ExitPending)

	// The repair is persisted.
	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, stored.Quantity, 1e-9)

	got2, _ := l.Get("p2")
	assert.InDelta(t, 0.5, got2.Quantity, 1e-9)
}

func TestByOrderAndByUser(t *testing.T) {
	store := newMemStore()
	l := New(store, nil, testLogger())
	ctx := context.Background()

	a := testPosition("p1")
	b := testPosition("p2")
	b.OrderID = "order-2"
	b.UserID = 7
	require.NoError(t, l.Add(ctx, a))
	require.NoError(t, l.Add(ctx, b))

	assert.Len(t, l.ByOrder("order-1"), 1)
	assert.Len(t, l.ByUser(7), 1)
	assert.Len(t, l.AllOpen(), 2)
}
