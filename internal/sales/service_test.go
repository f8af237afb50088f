package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore implements Store in memory. InTx holds one mutex, which gives the
// same serialization the row lock gives the pgx store; writes are staged in
// the tx and applied only on commit.
type memStore struct {
	mu      sync.Mutex
	items   map[string]*StockItem
	sales   map[string]*Sale
	seq     map[int]int64
	txCount int
}

func newMemStore(items ...StockItem) *memStore {
	s := &memStore{
		items: map[string]*StockItem{},
		sales: map[string]*Sale{},
		seq:   map[int]int64{},
	}
	for i := range items {
		it := items[i]
		s.items[it.ID] = &it
	}
	return s
}

func (s *memStore) InTx(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	tx := &memTx{s: s, dec: map[string]int64{}, seq: map[int]int64{}}
	if err := fn(tx); err != nil {
		return err // staged writes dropped
	}

	for id, q := range tx.dec {
		s.items[id].Quantity -= q
	}
	for year, n := range tx.seq {
		s.seq[year] += n
	}
	if tx.sale != nil {
		cp := *tx.sale
		cp.Lines = append([]SaleLine(nil), tx.lines...)
		cp.Invoice = tx.invoice
		s.sales[cp.ID] = &cp
	}
	return nil
}

type memTx struct {
	s       *memStore
	dec     map[string]int64
	seq     map[int]int64
	sale    *Sale
	lines   []SaleLine
	invoice *Invoice
}

func (t *memTx) StockItemForUpdate(_ context.Context, itemID string) (*StockItem, error) {
	it, ok := t.s.items[itemID]
	if !ok {
		return nil, &ItemNotFoundError{ItemID: itemID}
	}
	cp := *it
	cp.Quantity -= t.dec[itemID]
	return &cp, nil
}

func (t *memTx) DecrementStock(_ context.Context, itemID string, qty int64) error {
	it, ok := t.s.items[itemID]
	if !ok {
		return &ItemNotFoundError{ItemID: itemID}
	}
	available := it.Quantity - t.dec[itemID]
	if available < qty {
		return &InsufficientStockError{ItemID: itemID, Available: available, Requested: qty}
	}
	t.dec[itemID] += qty
	return nil
}

func (t *memTx) InsertSale(_ context.Context, sale *Sale) error { t.sale = sale; return nil }

func (t *memTx) InsertSaleLines(_ context.Context, _ string, lines []SaleLine) error {
	t.lines = lines
	return nil
}

func (t *memTx) InsertInvoice(_ context.Context, inv *Invoice) error { t.invoice = inv; return nil }

func (t *memTx) NextInvoiceSeq(_ context.Context, year int) (int64, error) {
	next := t.s.seq[year] + t.seq[year] + 1
	t.seq[year]++
	return next, nil
}

// --- helpers ---

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func dp(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	v := d(t, s)
	return &v
}

func fixedNow(t *testing.T) func() time.Time {
	t.Helper()
	at := time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testItems(t *testing.T) (StockItem, StockItem) {
	t.Helper()
	paracetamol := StockItem{
		ID:           uuid.NewString(),
		Name:         "Paracetamol 500mg",
		UnitPrice:    d(t, "100.00"),
		Quantity:     10,
		DiscountRate: d(t, "0.10"),
		TaxRate:      d(t, "0.05"),
	}
	cough := StockItem{
		ID:        uuid.NewString(),
		Name:      "Cough Syrup 100ml",
		UnitPrice: d(t, "50.00"),
		Quantity:  5,
	}
	return paracetamol, cough
}

func validRequest(lines ...SaleLineRequest) SaleCreateRequest {
	return SaleCreateRequest{
		ExternalID:    uuid.NewString(),
		StaffID:       "staff-1",
		Lines:         lines,
		PaymentMethod: PayCash,
	}
}

// --- tests ---

func TestProcessSaleTotals(t *testing.T) {
	para, cough := testItems(t)
	store := newMemStore(para, cough)
	svc := NewService(store, YearSeq{})
	svc.Now = fixedNow(t)

	req := validRequest(
		SaleLineRequest{ItemID: para.ID, Qty: 2},
		SaleLineRequest{ItemID: cough.ID, Qty: 1},
	)
	req.ExtraDiscountRate = d(t, "0.10")

	sale, err := svc.ProcessSale(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"GrossSubtotal", sale.GrossSubtotal, "250.00"},
		{"ProductDiscount", sale.ProductDiscount, "20.00"},
		{"ExtraDiscount", sale.ExtraDiscount, "23.00"},
		{"Subtotal", sale.Subtotal, "207.00"},
		{"TotalTax", sale.TotalTax, "9.00"},
		{"GrandTotal", sale.GrandTotal, "216.00"},
	}
	for _, c := range checks {
		if c.got.StringFixed(2) != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got.StringFixed(2), c.want)
		}
	}

	if sale.Status != StatusPaid {
		t.Errorf("status = %s, want %s", sale.Status, StatusPaid)
	}
	if len(sale.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(sale.Lines))
	}
	if got := sale.Lines[0].LineTotal.StringFixed(2); got != "189.00" {
		t.Errorf("line[0] total = %s, want 189.00", got)
	}
	if got := sale.Lines[1].LineTotal.StringFixed(2); got != "50.00" {
		t.Errorf("line[1] total = %s, want 50.00", got)
	}

	if sale.Invoice == nil {
		t.Fatal("no invoice issued")
	}
	if sale.Invoice.Status != InvoiceIssued {
		t.Errorf("invoice status = %s, want %s", sale.Invoice.Status, InvoiceIssued)
	}
	if sale.Invoice.Number != "INV-2026-000001" {
		t.Errorf("invoice number = %s, want INV-2026-000001", sale.Invoice.Number)
	}

	if q := store.items[para.ID].Quantity; q != 8 {
		t.Errorf("paracetamol stock = %d, want 8", q)
	}
	if q := store.items[cough.ID].Quantity; q != 4 {
		t.Errorf("cough syrup stock = %d, want 4", q)
	}
}

func TestProcessSaleItemNotFound(t *testing.T) {
	para, _ := testItems(t)
	store := newMemStore(para)
	svc := NewService(store, YearSeq{})

	missing := uuid.NewString()
	_, err := svc.ProcessSale(context.Background(), validRequest(SaleLineRequest{ItemID: missing, Qty: 1}))

	var nf *ItemNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want ItemNotFoundError", err)
	}
	if nf.ItemID != missing {
		t.Errorf("ItemID = %s, want %s", nf.ItemID, missing)
	}
	if len(store.sales) != 0 {
		t.Error("sale persisted despite failure")
	}
}

func TestProcessSaleInsufficientStock(t *testing.T) {
	item := StockItem{ID: uuid.NewString(), Name: "Bandage", UnitPrice: decimal.NewFromInt(20), Quantity: 3}
	store := newMemStore(item)
	svc := NewService(store, YearSeq{})

	_, err := svc.ProcessSale(context.Background(), validRequest(SaleLineRequest{ItemID: item.ID, Qty: 5}))

	var is *InsufficientStockError
	if !errors.As(err, &is) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if is.Available != 3 || is.Requested != 5 {
		t.Errorf("available/requested = %d/%d, want 3/5", is.Available, is.Requested)
	}
	if q := store.items[item.ID].Quantity; q != 3 {
		t.Errorf("stock = %d, want 3 (unchanged)", q)
	}
	if len(store.sales) != 0 {
		t.Error("sale persisted despite failure")
	}
}

// Failure at line 2 must leave line 1's decrement unapplied.
func TestProcessSaleAtomicRollback(t *testing.T) {
	para, cough := testItems(t)
	store := newMemStore(para, cough)
	svc := NewService(store, YearSeq{})

	_, err := svc.ProcessSale(context.Background(), validRequest(
		SaleLineRequest{ItemID: para.ID, Qty: 2},
		SaleLineRequest{ItemID: cough.ID, Qty: 99},
	))

	var is *InsufficientStockError
	if !errors.As(err, &is) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if q := store.items[para.ID].Quantity; q != 10 {
		t.Errorf("paracetamol stock = %d, want 10 (rolled back)", q)
	}
	if len(store.sales) != 0 {
		t.Error("sale persisted despite failure")
	}
	if store.seq[time.Now().Year()] != 0 {
		t.Error("invoice counter advanced despite rollback")
	}
}

func TestProcessSaleValidation(t *testing.T) {
	para, _ := testItems(t)

	cases := []struct {
		name  string
		mut   func(*SaleCreateRequest)
		field string
	}{
		{"empty lines", func(r *SaleCreateRequest) { r.Lines = nil }, "lines"},
		{"zero qty", func(r *SaleCreateRequest) { r.Lines[0].Qty = 0 }, "lines[0].qty"},
		{"missing staff", func(r *SaleCreateRequest) { r.StaffID = "" }, "staff_id"},
		{"bad payment method", func(r *SaleCreateRequest) { r.PaymentMethod = "CHEQUE" }, "payment_method"},
		{"extra discount above 1", func(r *SaleCreateRequest) { r.ExtraDiscountRate = decimal.NewFromInt(2) }, "extra_discount_rate"},
		{"negative line discount", func(r *SaleCreateRequest) { r.Lines[0].DiscountRate = dp(t, "-0.1") }, "lines[0].discount_rate"},
		{"line tax above 1", func(r *SaleCreateRequest) { r.Lines[0].TaxRate = dp(t, "1.5") }, "lines[0].tax_rate"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := newMemStore(para)
			svc := NewService(store, YearSeq{})

			req := validRequest(SaleLineRequest{ItemID: para.ID, Qty: 1})
			c.mut(&req)

			_, err := svc.ProcessSale(context.Background(), req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != c.field {
				t.Errorf("field = %s, want %s", ve.Field, c.field)
			}
			if store.txCount != 0 {
				t.Error("store touched before validation passed")
			}
		})
	}
}

// Two concurrent sales of 6 against stock 10: exactly one wins.
func TestProcessSaleConcurrentSameItem(t *testing.T) {
	item := StockItem{ID: uuid.NewString(), Name: "Insulin", UnitPrice: decimal.NewFromInt(500), Quantity: 10}
	store := newMemStore(item)
	svc := NewService(store, YearSeq{})

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessSale(context.Background(), validRequest(SaleLineRequest{ItemID: item.ID, Qty: 6}))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		default:
			var is *InsufficientStockError
			if !errors.As(err, &is) {
				t.Fatalf("unexpected error: %v", err)
			}
			insufficient++
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("ok=%d insufficient=%d, want 1/1", ok, insufficient)
	}
	if q := store.items[item.ID].Quantity; q != 4 {
		t.Fatalf("final stock = %d, want 4", q)
	}
}

// Request overrides replace catalog rates; the catalog price is snapshotted,
// later edits never touch the recorded line.
func TestProcessSaleSnapshotAndOverrides(t *testing.T) {
	para, _ := testItems(t) // catalog: 10% discount, 5% tax
	store := newMemStore(para)
	svc := NewService(store, YearSeq{})

	req := validRequest(SaleLineRequest{
		ItemID:       para.ID,
		Qty:          1,
		DiscountRate: dp(t, "0.20"),
		TaxRate:      dp(t, "0"),
	})
	sale, err := svc.ProcessSale(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}

	line := sale.Lines[0]
	if got := line.DiscountAmount.StringFixed(2); got != "20.00" {
		t.Errorf("discount = %s, want 20.00 (override 20%%)", got)
	}
	if !line.TaxAmount.IsZero() {
		t.Errorf("tax = %s, want 0 (override)", line.TaxAmount)
	}

	// catalog price change after the sale
	store.items[para.ID].UnitPrice = d(t, "999.99")
	recorded := store.sales[sale.ID].Lines[0]
	if recorded.UnitPrice.StringFixed(2) != "100.00" {
		t.Errorf("recorded unit price = %s, want snapshot 100.00", recorded.UnitPrice)
	}
}

func TestYearSeqNumbering(t *testing.T) {
	para, _ := testItems(t)
	store := newMemStore(para)
	svc := NewService(store, YearSeq{Prefix: "PH"})
	svc.Now = fixedNow(t)

	first, err := svc.ProcessSale(context.Background(), validRequest(SaleLineRequest{ItemID: para.ID, Qty: 1}))
	if err != nil {
		t.Fatalf("first sale: %v", err)
	}
	second, err := svc.ProcessSale(context.Background(), validRequest(SaleLineRequest{ItemID: para.ID, Qty: 1}))
	if err != nil {
		t.Fatalf("second sale: %v", err)
	}

	if first.Invoice.Number != "PH-2026-000001" {
		t.Errorf("first = %s, want PH-2026-000001", first.Invoice.Number)
	}
	if second.Invoice.Number != "PH-2026-000002" {
		t.Errorf("second = %s, want PH-2026-000002", second.Invoice.Number)
	}
}

func TestRandomNumberer(t *testing.T) {
	n := RandomNumberer{Prefix: "INV"}
	at := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)

	a, err := n.Next(context.Background(), nil, "sale-a", at)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	b, _ := n.Next(context.Background(), nil, "sale-b", at)
	if a == b {
		t.Fatalf("numbers collide: %s", a)
	}
	if len(a) < len("INV-2026-")+36 {
		t.Errorf("number %s looks truncated", a)
	}
}
