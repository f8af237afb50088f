package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the POS schema. quantity and subtotal carry CHECKs so even
// an out-of-band writer cannot push stock negative or persist a negative
// subtotal.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS stock_items (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0),
			quantity BIGINT NOT NULL CHECK (quantity >= 0),
			discount_rate NUMERIC(5,4) NOT NULL DEFAULT 0 CHECK (discount_rate BETWEEN 0 AND 1),
			tax_rate NUMERIC(5,4) NOT NULL DEFAULT 0 CHECK (tax_rate BETWEEN 0 AND 1),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id UUID PRIMARY KEY,
			staff_id TEXT NOT NULL,
			customer_id TEXT,
			gross_subtotal NUMERIC(12,2) NOT NULL,
			product_discount NUMERIC(12,2) NOT NULL,
			extra_discount NUMERIC(12,2) NOT NULL,
			subtotal NUMERIC(12,2) NOT NULL CHECK (subtotal >= 0),
			total_tax NUMERIC(12,2) NOT NULL,
			grand_total NUMERIC(12,2) NOT NULL,
			payment_method TEXT NOT NULL,
			status TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL REFERENCES sales(id),
			item_id UUID NOT NULL REFERENCES stock_items(id),
			item_name TEXT NOT NULL,
			qty BIGINT NOT NULL CHECK (qty > 0),
			unit_price NUMERIC(12,2) NOT NULL,
			discount_amount NUMERIC(12,2) NOT NULL,
			tax_amount NUMERIC(12,2) NOT NULL,
			line_total NUMERIC(12,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL UNIQUE REFERENCES sales(id),
			number TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_counters (
			year INT PRIMARY KEY,
			seq BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale_id ON sale_items (sale_id)`,
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
