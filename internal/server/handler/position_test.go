package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

type fakeBook struct {
	positions []domain.Position
}

func (b *fakeBook) AllOpen() []domain.Position { return b.positions }

func (b *fakeBook) Get(id string) (domain.Position, bool) {
	for _, p := range b.positions {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Position{}, false
}

func (b *fakeBook) ByOrder(orderID string) []domain.Position {
	var out []domain.Position
	for _, p := range b.positions {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

func newPositionMux(book *fakeBook) *http.ServeMux {
	h := NewPositionHandler(book, slog.Default())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/positions", h.ListPositions)
	mux.HandleFunc("GET /api/positions/{id}", h.GetPosition)
	return mux
}

func TestListPositions(t *testing.T) {
	book := &fakeBook{positions: []domain.Position{
		{ID: "p1", OrderID: "o1", Status: domain.PositionActive},
		{ID: "p2", OrderID: "o2", Status: domain.PositionActive},
		{ID: "p3", OrderID: "o1", Status: domain.PositionPending},
	}}
	mux := newPositionMux(book)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listPositionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Positions, 3)
}

func TestListPositionsByOrder(t *testing.T) {
	book := &fakeBook{positions: []domain.Position{
		{ID: "p1", OrderID: "o1"},
		{ID: "p2", OrderID: "o2"},
		{ID: "p3", OrderID: "o1"},
	}}
	mux := newPositionMux(book)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions?order_id=o1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listPositionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Positions, 2)
	assert.Equal(t, "p1", resp.Positions[0].ID)
	assert.Equal(t, "p3", resp.Positions[1].ID)
}

func TestListPositionsEmptyIsArray(t *testing.T) {
	mux := newPositionMux(&fakeBook{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"positions":[]}`, rec.Body.String())
}

func TestGetPosition(t *testing.T) {
	book := &fakeBook{positions: []domain.Position{
		{ID: "p1", OrderID: "o1", Quantity: 100, Status: domain.PositionActive},
	}}
	mux := newPositionMux(book)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/p1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var pos domain.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
	assert.Equal(t, "p1", pos.ID)
	assert.Equal(t, 100.0, pos.Quantity)
}

func TestGetPositionNotFound(t *testing.T) {
	mux := newPositionMux(&fakeBook{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
