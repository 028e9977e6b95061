// Package notify delivers user-facing trigger/sell/error reports. Delivery is
// fire-and-forget: sender failures are logged, never propagated, so a broken
// notification channel can never stall trading.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers a message addressed to the user.
	Send(ctx context.Context, userID int64, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier fans a notification out to every registered sender. It implements
// domain.NotifySink.
type Notifier struct {
	senders []Sender
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		timeout: 10 * time.Second,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the message to every sender. Failures are logged only.
func (n *Notifier) Notify(ctx context.Context, userID int64, message string) {
	if len(n.senders) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	for _, s := range n.senders {
		if err := s.Send(sendCtx, userID, message); err != nil {
			n.logger.WarnContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Compile-time interface check.
var _ domain.NotifySink = (*Notifier)(nil)
