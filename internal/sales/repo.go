package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. NUMERIC columns travel as text both ways so
// amounts survive the round trip without binary-float drift.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPgErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgErr("commit tx", err)
	}
	return nil
}

// mapPgErr translates driver faults into the sale error taxonomy:
// serialization/deadlock -> ErrTxConflict, lock/statement timeout or context
// deadline -> ErrTxTimeout, anything else -> PersistenceError.
func mapPgErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTxTimeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return ErrTxConflict
		case "55P03", "57014": // lock_not_available, query_canceled
			return ErrTxTimeout
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

func parseDec(dst *decimal.Decimal, src, what string) error {
	d, err := decimal.NewFromString(src)
	if err != nil {
		return &PersistenceError{Op: "parse " + what, Err: err}
	}
	*dst = d
	return nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) StockItemForUpdate(ctx context.Context, itemID string) (*StockItem, error) {
	var (
		it                       StockItem
		price, discRate, taxRate string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, unit_price::text, quantity, discount_rate::text, tax_rate::text, created_at, updated_at
		FROM stock_items WHERE id = $1
		FOR UPDATE`, itemID).
		Scan(&it.ID, &it.Name, &price, &it.Quantity, &discRate, &taxRate, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ItemNotFoundError{ItemID: itemID}
	}
	if err != nil {
		return nil, mapPgErr("lock stock item", err)
	}
	if err := parseDec(&it.UnitPrice, price, "unit_price"); err != nil {
		return nil, err
	}
	if err := parseDec(&it.DiscountRate, discRate, "discount_rate"); err != nil {
		return nil, err
	}
	if err := parseDec(&it.TaxRate, taxRate, "tax_rate"); err != nil {
		return nil, err
	}
	return &it, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, itemID string, qty int64) error {
	// guard in the UPDATE as well; the row lock already serializes us but
	// the check keeps quantity >= 0 even against out-of-band writers
	ct, err := t.tx.Exec(ctx, `
		UPDATE stock_items SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2`, itemID, qty)
	if err != nil {
		return mapPgErr("decrement stock", err)
	}
	if ct.RowsAffected() != 1 {
		var available int64
		_ = t.tx.QueryRow(ctx, `SELECT quantity FROM stock_items WHERE id=$1`, itemID).Scan(&available)
		return &InsufficientStockError{ItemID: itemID, Available: available, Requested: qty}
	}
	return nil
}

func (t *pgTx) InsertSale(ctx context.Context, s *Sale) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sales (id, staff_id, customer_id, gross_subtotal, product_discount, extra_discount,
		                   subtotal, total_tax, grand_total, payment_method, status, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.StaffID, s.CustomerID,
		s.GrossSubtotal.StringFixed(2), s.ProductDiscount.StringFixed(2), s.ExtraDiscount.StringFixed(2),
		s.Subtotal.StringFixed(2), s.TotalTax.StringFixed(2), s.GrandTotal.StringFixed(2),
		string(s.PaymentMethod), string(s.Status), s.Note, s.CreatedAt)
	if err != nil {
		return mapPgErr("insert sale", err)
	}
	return nil
}

func (t *pgTx) InsertSaleLines(ctx context.Context, saleID string, lines []SaleLine) error {
	for _, l := range lines {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO sale_items (id, sale_id, item_id, item_name, qty, unit_price, discount_amount, tax_amount, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, saleID, l.ItemID, l.ItemName, l.Qty,
			l.UnitPrice.StringFixed(2), l.DiscountAmount.StringFixed(2), l.TaxAmount.StringFixed(2), l.LineTotal.StringFixed(2))
		if err != nil {
			return mapPgErr("insert sale line", err)
		}
	}
	return nil
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv *Invoice) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoices (id, sale_id, number, status, issued_at)
		VALUES ($1,$2,$3,$4,$5)`,
		inv.ID, inv.SaleID, inv.Number, string(inv.Status), inv.IssuedAt)
	if err != nil {
		return mapPgErr("insert invoice", err)
	}
	return nil
}

func (t *pgTx) NextInvoiceSeq(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoice_counters (year, seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET seq = invoice_counters.seq + 1
		RETURNING seq`, year).Scan(&seq)
	if err != nil {
		return 0, mapPgErr("next invoice seq", err)
	}
	return seq, nil
}

// --- reads and stock adjustment outside the sale transaction ---

func (r *Repo) FindSale(ctx context.Context, saleID string) (*Sale, error) {
	var (
		s                                      Sale
		grossS, prodD, extraD, sub, tax, grand string
		method, status                         string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, staff_id, customer_id, gross_subtotal::text, product_discount::text, extra_discount::text,
		       subtotal::text, total_tax::text, grand_total::text, payment_method, status, note, created_at
		FROM sales WHERE id = $1`, saleID).
		Scan(&s.ID, &s.StaffID, &s.CustomerID, &grossS, &prodD, &extraD, &sub, &tax, &grand, &method, &status, &s.Note, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapPgErr("find sale", err)
	}
	s.PaymentMethod = PaymentMethod(method)
	s.Status = SaleStatus(status)
	amounts := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&s.GrossSubtotal, grossS, "gross_subtotal"}, {&s.ProductDiscount, prodD, "product_discount"},
		{&s.ExtraDiscount, extraD, "extra_discount"}, {&s.Subtotal, sub, "subtotal"},
		{&s.TotalTax, tax, "total_tax"}, {&s.GrandTotal, grand, "grand_total"},
	}
	for _, a := range amounts {
		if err := parseDec(a.dst, a.src, a.name); err != nil {
			return nil, err
		}
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, sale_id, item_id, item_name, qty, unit_price::text, discount_amount::text, tax_amount::text, line_total::text
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, mapPgErr("find sale lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l                      SaleLine
			price, disc, ltax, tot string
		)
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ItemID, &l.ItemName, &l.Qty, &price, &disc, &ltax, &tot); err != nil {
			return nil, mapPgErr("scan sale line", err)
		}
		if err := parseDec(&l.UnitPrice, price, "unit_price"); err != nil {
			return nil, err
		}
		if err := parseDec(&l.DiscountAmount, disc, "discount_amount"); err != nil {
			return nil, err
		}
		if err := parseDec(&l.TaxAmount, ltax, "tax_amount"); err != nil {
			return nil, err
		}
		if err := parseDec(&l.LineTotal, tot, "line_total"); err != nil {
			return nil, err
		}
		s.Lines = append(s.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("find sale lines", err)
	}

	var inv Invoice
	var invStatus string
	err = r.DB.QueryRow(ctx, `SELECT id, sale_id, number, status, issued_at FROM invoices WHERE sale_id = $1`, saleID).
		Scan(&inv.ID, &inv.SaleID, &inv.Number, &invStatus, &inv.IssuedAt)
	if err == nil {
		inv.Status = InvoiceStatus(invStatus)
		s.Invoice = &inv
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapPgErr("find invoice", err)
	}
	return &s, nil
}

func (r *Repo) ListStockItems(ctx context.Context) ([]StockItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, unit_price::text, quantity, discount_rate::text, tax_rate::text, created_at, updated_at
		FROM stock_items ORDER BY name`)
	if err != nil {
		return nil, mapPgErr("list stock items", err)
	}
	defer rows.Close()

	var out []StockItem
	for rows.Next() {
		var (
			it                       StockItem
			price, discRate, taxRate string
		)
		if err := rows.Scan(&it.ID, &it.Name, &price, &it.Quantity, &discRate, &taxRate, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, mapPgErr("scan stock item", err)
		}
		if err := parseDec(&it.UnitPrice, price, "unit_price"); err != nil {
			return nil, err
		}
		if err := parseDec(&it.DiscountRate, discRate, "discount_rate"); err != nil {
			return nil, err
		}
		if err := parseDec(&it.TaxRate, taxRate, "tax_rate"); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Restock is the other legal stock mutation besides the sale decrement.
func (r *Repo) Restock(ctx context.Context, itemID string, qty int64) (int64, error) {
	var quantity int64
	err := r.DB.QueryRow(ctx, `
		UPDATE stock_items SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity`, itemID, qty).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &ItemNotFoundError{ItemID: itemID}
	}
	if err != nil {
		return 0, mapPgErr("restock", err)
	}
	return quantity, nil
}
