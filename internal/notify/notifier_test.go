package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSender struct {
	mu       sync.Mutex
	name     string
	err      error
	messages []string
	users    []int64
}

func (r *recordingSender) Send(_ context.Context, userID int64, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.messages = append(r.messages, message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFansOutToAllSenders(t *testing.T) {
	a := &recordingSender{name: "a"}
	b := &recordingSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, testLogger())

	n.Notify(context.Background(), 42, "position closed")

	assert.Equal(t, []string{"position closed"}, a.messages)
	assert.Equal(t, []string{"position closed"}, b.messages)
	assert.Equal(t, []int64{42}, a.users)
}

func TestNotifyContinuesPastFailingSender(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("network down")}
	ok := &recordingSender{name: "ok"}
	n := NewNotifier([]Sender{broken, ok}, testLogger())

	n.Notify(context.Background(), 1, "hello")

	// The failing sender never blocks the healthy one.
	assert.Len(t, ok.messages, 1)
}

func TestNotifyNoSenders(t *testing.T) {
	n := NewNotifier(nil, testLogger())
	// Must not panic.
	n.Notify(context.Background(), 1, "hello")
}
