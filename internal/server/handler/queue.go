package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/queue"
)

// QueueControl defines the queue operations exposed over HTTP.
type QueueControl interface {
	GetStats() queue.Stats
	Pause()
	Resume()
	Cancel(ctx context.Context, id, reason string) bool
}

// QueueHandler serves execution-queue endpoints.
type QueueHandler struct {
	queue  QueueControl
	logger *slog.Logger
}

// NewQueueHandler creates a QueueHandler over the given queue.
func NewQueueHandler(q QueueControl, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		queue:  q,
		logger: logger,
	}
}

// GetStats returns a snapshot of queue activity.
// GET /api/queue/stats
func (h *QueueHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.GetStats())
}

// Pause suspends queue dispatching.
// POST /api/queue/pause
func (h *QueueHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.queue.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Resume continues queue dispatching.
// POST /api/queue/resume
func (h *QueueHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.queue.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// CancelItem cancels a still-pending execution item.
// DELETE /api/queue/items/{id}
func (h *QueueHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.queue.Cancel(r.Context(), id, "cancelled via api") {
		writeError(w, http.StatusNotFound, "item not pending")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
