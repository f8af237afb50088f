package sales

import "context"

// Store is the transactional unit-of-work handle the orchestrator runs on.
// The pgx implementation is Repo; tests plug an in-memory one.
type Store interface {
	// InTx runs fn inside one atomic transaction: commit if fn returns nil,
	// full rollback otherwise. Store-level failures are mapped to
	// ErrTxTimeout/ErrTxConflict/PersistenceError.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of operations available inside one sale transaction.
type Tx interface {
	// StockItemForUpdate fetches the current row and takes an exclusive
	// row lock, serializing concurrent sales of the same item until commit.
	// Returns *ItemNotFoundError for unknown ids.
	StockItemForUpdate(ctx context.Context, itemID string) (*StockItem, error)

	// DecrementStock reduces quantity-on-hand, guarded so it can never go
	// negative. Returns *InsufficientStockError if the guard trips.
	DecrementStock(ctx context.Context, itemID string, qty int64) error

	InsertSale(ctx context.Context, sale *Sale) error
	InsertSaleLines(ctx context.Context, saleID string, lines []SaleLine) error
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// NextInvoiceSeq advances and returns the per-year invoice counter.
	NextInvoiceSeq(ctx context.Context, year int) (int64, error)
}
