package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PayCash          PaymentMethod = "CASH"
	PayCard          PaymentMethod = "CARD"
	PayMobileBanking PaymentMethod = "MOBILE_BANKING"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayMobileBanking:
		return true
	}
	return false
}

// A sale is created directly in its terminal state: paid in full at the
// counter. Deferred/partial payment is a separate flow, not this one.
type SaleStatus string

const StatusPaid SaleStatus = "PAID"

type InvoiceStatus string

const InvoiceIssued InvoiceStatus = "ISSUED"

// StockItem is a catalog row. DiscountRate/TaxRate are catalog defaults as
// fractions in [0,1]; a sale line may override them. Quantity only moves via
// sale decrement or restock.
type StockItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int64           `json:"quantity"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SaleLineRequest is one requested cart entry. Nil rates mean "use the
// catalog defaults snapshotted at sale time".
type SaleLineRequest struct {
	ItemID       string           `json:"item_id"`
	Qty          int64            `json:"qty"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
	TaxRate      *decimal.Decimal `json:"tax_rate,omitempty"`
}

// SaleCreateRequest is the validated input of ProcessSale. ExternalID is the
// client-supplied request id used by the caller for deduplication; the
// orchestrator itself does not dedupe.
type SaleCreateRequest struct {
	ExternalID        string            `json:"external_id"`
	StaffID           string            `json:"staff_id"`
	CustomerID        *string           `json:"customer_id,omitempty"`
	Lines             []SaleLineRequest `json:"lines"`
	PaymentMethod     PaymentMethod     `json:"payment_method"`
	ExtraDiscountRate decimal.Decimal   `json:"extra_discount_rate"`
	Note              string            `json:"note,omitempty"`
}

// SaleLine is the persisted, append-only record of one sold line. UnitPrice
// and the derived amounts are snapshots; later catalog edits never touch them.
// Invariant: LineTotal = UnitPrice*Qty - DiscountAmount + TaxAmount.
type SaleLine struct {
	ID             string          `json:"id"`
	SaleID         string          `json:"sale_id"`
	ItemID         string          `json:"item_id"`
	ItemName       string          `json:"item_name"`
	Qty            int64           `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// Sale is the aggregate root, written atomically with its lines and invoice.
// Invariant: GrandTotal = Subtotal + TotalTax, Subtotal >= 0.
type Sale struct {
	ID              string          `json:"id"`
	StaffID         string          `json:"staff_id"`
	CustomerID      *string         `json:"customer_id,omitempty"`
	GrossSubtotal   decimal.Decimal `json:"gross_subtotal"`
	ProductDiscount decimal.Decimal `json:"product_discount"`
	ExtraDiscount   decimal.Decimal `json:"extra_discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TotalTax        decimal.Decimal `json:"total_tax"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Status          SaleStatus      `json:"status"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []SaleLine      `json:"lines"`
	Invoice         *Invoice        `json:"invoice,omitempty"`
}

// Invoice is the 1:1 child of a Sale, issued in the same transaction.
type Invoice struct {
	ID       string        `json:"id"`
	SaleID   string        `json:"sale_id"`
	Number   string        `json:"number"`
	Status   InvoiceStatus `json:"status"`
	IssuedAt time.Time     `json:"issued_at"`
}
