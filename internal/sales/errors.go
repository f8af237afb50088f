package sales

import (
	"errors"
	"fmt"
)

// Transient store failures. The whole ProcessSale call may be retried; both
// guarantee nothing was committed.
var (
	ErrTxTimeout  = errors.New("sale transaction timed out")
	ErrTxConflict = errors.New("sale transaction conflicted")
)

// ValidationError is returned before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ItemNotFoundError aborts the whole sale.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("stock item not found: %s", e.ItemID)
}

// InsufficientStockError carries available vs requested for caller display.
type InsufficientStockError struct {
	ItemID    string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d requested=%d", e.ItemID, e.Available, e.Requested)
}

// PersistenceError wraps any other storage fault. The transaction still
// guarantees no partial state became visible.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller may safely resubmit the same call.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTxTimeout) || errors.Is(err, ErrTxConflict)
}
