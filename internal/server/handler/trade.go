package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// Trader defines the manual trading operations exposed over HTTP.
type Trader interface {
	ExecuteBuy(ctx context.Context, orderID string, token domain.TokenInfo, spendBNB float64) (domain.Position, error)
	ExecuteSell(ctx context.Context, positionID string, sellPercent float64) error
}

// TokenResolver reads token metadata from the chain.
type TokenResolver interface {
	TokenMetadata(ctx context.Context, token common.Address) (domain.TokenInfo, error)
}

// TradeHandler serves manual buy/sell endpoints.
type TradeHandler struct {
	trader Trader
	tokens TokenResolver
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trader Trader, tokens TokenResolver, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trader: trader,
		tokens: tokens,
		logger: logger,
	}
}

type buyRequest struct {
	OrderID  string  `json:"order_id"`
	Token    string  `json:"token"`
	SpendBNB float64 `json:"spend_bnb"`
}

// Buy submits a manual buy and returns the opened position.
// POST /api/trades/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || !common.IsHexAddress(req.Token) || req.SpendBNB <= 0 {
		writeError(w, http.StatusBadRequest, "order_id, token, and positive spend_bnb required")
		return
	}

	token, err := h.tokens.TokenMetadata(r.Context(), common.HexToAddress(req.Token))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: token metadata lookup failed",
			slog.String("token", req.Token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "token metadata lookup failed")
		return
	}

	pos, err := h.trader.ExecuteBuy(r.Context(), req.OrderID, token, req.SpendBNB)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: manual buy failed",
			slog.String("order_id", req.OrderID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

type sellRequest struct {
	SellPercent float64 `json:"sell_percent"`
}

// Sell submits a manual exit for the position.
// POST /api/positions/{id}/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req sellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.trader.ExecuteSell(r.Context(), id, req.SellPercent)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sold"})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "position not found")
	case errors.Is(err, domain.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, "sell_percent must be in (0, 100]")
	case errors.Is(err, domain.ErrExitAlreadyPending):
		writeError(w, http.StatusConflict, "an exit is already in flight for this position")
	default:
		h.logger.ErrorContext(r.Context(), "handler: manual sell failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
