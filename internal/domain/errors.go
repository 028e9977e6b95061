package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidItem        = errors.New("invalid execution item")
	ErrQueueStopped       = errors.New("queue stopped")
	ErrAwaitTimeout       = errors.New("await timed out")
	ErrLockHeld           = errors.New("lock already held")
	ErrInsufficientGas    = errors.New("insufficient gas balance")
	ErrZeroBalance        = errors.New("zero token balance")
	ErrReceiptNotFound    = errors.New("receipt not found")
	ErrTransactionFailed  = errors.New("transaction reverted")
	ErrNoPool             = errors.New("no pool for token")
	ErrExitAlreadyPending = errors.New("exit already pending")
)
