package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Numberer generates the human-facing invoice number for a sale. Next runs
// inside the sale transaction, so sequence-based strategies stay atomic with
// the sale they number.
type Numberer interface {
	Next(ctx context.Context, tx Tx, saleID string, at time.Time) (string, error)
}

// YearSeq numbers invoices PREFIX-YYYY-NNNNNN from a per-year counter
// advanced in the sale transaction. Gap-free is not guaranteed (a rolled-back
// sale burns nothing here since the counter row rolls back too), collisions
// are impossible by construction.
type YearSeq struct {
	Prefix string
}

func (n YearSeq) Next(ctx context.Context, tx Tx, _ string, at time.Time) (string, error) {
	year := at.Year()
	seq, err := tx.NextInvoiceSeq(ctx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%06d", n.prefix(), year, seq), nil
}

func (n YearSeq) prefix() string {
	if n.Prefix == "" {
		return "INV"
	}
	return n.Prefix
}

// RandomNumberer derives the number from a fresh UUID, for deployments that
// cannot share a counter row. The full UUID is kept: truncating it would
// trade uniqueness for looks.
type RandomNumberer struct {
	Prefix string
}

func (n RandomNumberer) Next(_ context.Context, _ Tx, _ string, at time.Time) (string, error) {
	p := n.Prefix
	if p == "" {
		p = "INV"
	}
	return fmt.Sprintf("%s-%d-%s", p, at.Year(), strings.ToUpper(uuid.NewString())), nil
}
