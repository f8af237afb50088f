package sales

import (
	"encoding/json"
	"time"
)

const (
	EventSaleCompleted  = "SaleCompleted"
	EventStockRestocked = "StockRestocked"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "pos-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // sale_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

// Wire amounts are integer minor units (cents); downstream consumers sum
// them without re-parsing decimals.
type SaleLinePayload struct {
	ItemID         string `json:"item_id"`
	Qty            int64  `json:"qty"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type SaleCompletedPayload struct {
	SaleID          string            `json:"sale_id"`
	InvoiceNo       string            `json:"invoice_no"`
	StaffID         string            `json:"staff_id"`
	CustomerID      *string           `json:"customer_id,omitempty"`
	PaymentMethod   string            `json:"payment_method"`
	GrandTotalCents int64             `json:"grand_total_cents"`
	TotalTaxCents   int64             `json:"total_tax_cents"`
	SoldAt          time.Time         `json:"sold_at"`
	Lines           []SaleLinePayload `json:"lines"`
}

type StockRestockedPayload struct {
	ItemID      string `json:"item_id"`
	Qty         int64  `json:"qty"`
	NewQuantity int64  `json:"new_quantity"`
}
