package sales

import (
	"context"
	"time"

	"github.com/ariefcatur/go-pharmacy-pos.git/internal/pricing"
	"github.com/google/uuid"
)

// Service is the sale transaction orchestrator. Store and Numberer are
// injected; Now is swappable for tests.
type Service struct {
	Store    Store
	Numberer Numberer
	Now      func() time.Time
}

func NewService(store Store, numberer Numberer) *Service {
	return &Service{Store: store, Numberer: numberer, Now: time.Now}
}

// ProcessSale turns a cart into a durable Sale + lines + Invoice and
// decrements stock, all inside one transaction. Any failure rolls everything
// back: no partial decrement, no Sale without Invoice, no orphan lines.
func (s *Service) ProcessSale(ctx context.Context, req SaleCreateRequest) (*Sale, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	sale := &Sale{
		ID:            uuid.NewString(),
		StaffID:       req.StaffID,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Status:        StatusPaid,
		Note:          req.Note,
		CreatedAt:     now,
		Lines:         make([]SaleLine, 0, len(req.Lines)),
	}

	err := s.Store.InTx(ctx, func(tx Tx) error {
		priced := make([]pricing.Line, 0, len(req.Lines))

		for _, lr := range req.Lines {
			// re-fetch inside the tx with a row lock; a pre-tx snapshot
			// could let two concurrent sales both pass the stock check
			it, err := tx.StockItemForUpdate(ctx, lr.ItemID)
			if err != nil {
				return err
			}
			if it.Quantity < lr.Qty {
				return &InsufficientStockError{ItemID: it.ID, Available: it.Quantity, Requested: lr.Qty}
			}

			// snapshot price and rates now; request overrides win
			discRate := it.DiscountRate
			if lr.DiscountRate != nil {
				discRate = *lr.DiscountRate
			}
			taxRate := it.TaxRate
			if lr.TaxRate != nil {
				taxRate = *lr.TaxRate
			}

			priced = append(priced, pricing.Line{
				UnitPrice:    it.UnitPrice,
				Qty:          lr.Qty,
				DiscountRate: discRate,
				TaxRate:      taxRate,
			})
			sale.Lines = append(sale.Lines, SaleLine{
				ID:             uuid.NewString(),
				SaleID:         sale.ID,
				ItemID:         it.ID,
				ItemName:       it.Name,
				Qty:            lr.Qty,
				UnitPrice:      it.UnitPrice,
				DiscountAmount: pricing.LineDiscount(it.UnitPrice, lr.Qty, discRate),
				TaxAmount:      pricing.LineTax(it.UnitPrice, lr.Qty, discRate, taxRate),
				LineTotal:      pricing.LineTotal(it.UnitPrice, lr.Qty, discRate, taxRate),
			})

			if err := tx.DecrementStock(ctx, it.ID, lr.Qty); err != nil {
				return err
			}
		}

		tot := pricing.Aggregate(priced, req.ExtraDiscountRate)
		sale.GrossSubtotal = tot.GrossSubtotal
		sale.ProductDiscount = tot.ProductDiscount
		sale.ExtraDiscount = tot.ExtraDiscount
		sale.Subtotal = tot.Subtotal
		sale.TotalTax = tot.TotalTax
		sale.GrandTotal = tot.GrandTotal

		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.InsertSaleLines(ctx, sale.ID, sale.Lines); err != nil {
			return err
		}

		number, err := s.Numberer.Next(ctx, tx, sale.ID, now)
		if err != nil {
			return err
		}
		inv := &Invoice{
			ID:       uuid.NewString(),
			SaleID:   sale.ID,
			Number:   number,
			Status:   InvoiceIssued,
			IssuedAt: now,
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		sale.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}
