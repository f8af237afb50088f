// Package pricing computes per-line and order-level amounts for a sale.
//
// All money is decimal with 2 minor-unit digits. Every line-level result is
// rounded half-up to 2 places BEFORE summation, so aggregates are exact sums
// of what gets persisted per line. Rates (discount/tax) are fractions in
// [0,1]; the caller validates ranges before reaching this package.
package pricing

import "github.com/shopspring/decimal"

const minorUnits = 2

var hundred = decimal.NewFromInt(100)

// round applies the uniform rounding rule: half-up to the currency minor unit.
func round(d decimal.Decimal) decimal.Decimal { return d.Round(minorUnits) }

func gross(unitPrice decimal.Decimal, qty int64) decimal.Decimal {
	return round(unitPrice.Mul(decimal.NewFromInt(qty)))
}

// LineDiscount = unitPrice * qty * discountRate.
func LineDiscount(unitPrice decimal.Decimal, qty int64, discountRate decimal.Decimal) decimal.Decimal {
	return round(gross(unitPrice, qty).Mul(discountRate))
}

// LineTax is charged on the post-discount gross, never the raw gross.
func LineTax(unitPrice decimal.Decimal, qty int64, discountRate, taxRate decimal.Decimal) decimal.Decimal {
	net := gross(unitPrice, qty).Sub(LineDiscount(unitPrice, qty, discountRate))
	return round(net.Mul(taxRate))
}

// LineTotal = (unitPrice*qty - LineDiscount) + LineTax.
func LineTotal(unitPrice decimal.Decimal, qty int64, discountRate, taxRate decimal.Decimal) decimal.Decimal {
	g := gross(unitPrice, qty)
	d := LineDiscount(unitPrice, qty, discountRate)
	t := LineTax(unitPrice, qty, discountRate, taxRate)
	return g.Sub(d).Add(t)
}

// Line is one priced entry of an order.
type Line struct {
	UnitPrice    decimal.Decimal
	Qty          int64
	DiscountRate decimal.Decimal
	TaxRate      decimal.Decimal
}

// Totals is the order-level breakdown.
type Totals struct {
	GrossSubtotal   decimal.Decimal `json:"gross_subtotal"`   // sum of unitPrice*qty
	ProductDiscount decimal.Decimal `json:"product_discount"` // sum of line discounts
	NetBeforeExtra  decimal.Decimal `json:"net_before_extra"` // gross - product discount
	ExtraDiscount   decimal.Decimal `json:"extra_discount"`   // order-level, on NetBeforeExtra only
	Subtotal        decimal.Decimal `json:"subtotal"`         // NetBeforeExtra - ExtraDiscount
	TotalTax        decimal.Decimal `json:"total_tax"`        // sum of line taxes, never reduced by extra
	GrandTotal      decimal.Decimal `json:"grand_total"`      // Subtotal + TotalTax
}

// Aggregate folds lines into order totals. The extra discount applies only to
// the post-line-discount subtotal; per-line tax is summed as computed and is
// not reduced by the extra discount. Zero lines yield zero totals.
func Aggregate(lines []Line, extraDiscountRate decimal.Decimal) Totals {
	var g, d, t decimal.Decimal
	for _, l := range lines {
		g = g.Add(gross(l.UnitPrice, l.Qty))
		d = d.Add(LineDiscount(l.UnitPrice, l.Qty, l.DiscountRate))
		t = t.Add(LineTax(l.UnitPrice, l.Qty, l.DiscountRate, l.TaxRate))
	}
	net := g.Sub(d)
	extra := round(net.Mul(extraDiscountRate))
	sub := net.Sub(extra)
	return Totals{
		GrossSubtotal:   g,
		ProductDiscount: d,
		NetBeforeExtra:  net,
		ExtraDiscount:   extra,
		Subtotal:        sub,
		TotalTax:        t,
		GrandTotal:      sub.Add(t),
	}
}

// ToMinorUnits returns an already-rounded amount as integer cents, the unit
// downstream aggregation sums drift-free.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).IntPart()
}
