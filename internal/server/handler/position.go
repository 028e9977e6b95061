package handler

import (
	"log/slog"
	"net/http"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// PositionBook defines the read surface the position handler requires.
type PositionBook interface {
	AllOpen() []domain.Position
	Get(id string) (domain.Position, bool)
	ByOrder(orderID string) []domain.Position
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	book   PositionBook
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler over the given book.
func NewPositionHandler(book PositionBook, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		book:   book,
		logger: logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns all open positions, optionally filtered by order.
// GET /api/positions?order_id=...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	var positions []domain.Position
	if orderID := r.URL.Query().Get("order_id"); orderID != "" {
		positions = h.book.ByOrder(orderID)
	} else {
		positions = h.book.AllOpen()
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns a single open position.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pos, ok := h.book.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
