package sales

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

func rateInRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(one)
}

// Validate checks the request before the transaction opens; no store access
// happens until it passes. Rates are fractions, not percentages.
func (r SaleCreateRequest) Validate() error {
	if r.StaffID == "" {
		return &ValidationError{Field: "staff_id", Reason: "required"}
	}
	if len(r.Lines) == 0 {
		return &ValidationError{Field: "lines", Reason: "at least one line required"}
	}
	if !r.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown method %q", string(r.PaymentMethod))}
	}
	if !rateInRange(r.ExtraDiscountRate) {
		return &ValidationError{Field: "extra_discount_rate", Reason: "must be a fraction in [0,1]"}
	}
	for i, l := range r.Lines {
		if l.ItemID == "" {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].item_id", i), Reason: "required"}
		}
		if l.Qty < 1 {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].qty", i), Reason: "must be >= 1"}
		}
		if l.DiscountRate != nil && !rateInRange(*l.DiscountRate) {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].discount_rate", i), Reason: "must be a fraction in [0,1]"}
		}
		if l.TaxRate != nil && !rateInRange(*l.TaxRate) {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].tax_rate", i), Reason: "must be a fraction in [0,1]"}
		}
	}
	return nil
}
