// Package purchase holds the invoice arithmetic: line amounts, totals,
// round-off handling, payment status and the draft/committed line lifecycle.
package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/money"
)

// LineAmounts returns the gross amount, discount and GST of one line.
// Negative inputs count as zero, rates are held to [0, 100] and free quantity
// never enters the sums.
func LineAmounts(item domain.LineItem) (total, discount, gst decimal.Decimal) {
	qty := decimal.Zero
	if item.Quantity > 0 {
		qty = decimal.NewFromInt(int64(item.Quantity))
	}
	price := money.NonNegative(item.PurchasePrice)
	total = qty.Mul(price)
	discount = money.Percent(total, money.ClampPercent(item.DiscountPercentage))
	gst = money.Percent(total.Sub(discount), money.ClampPercent(item.GSTPercentage))
	return total, discount, gst
}

type sums struct {
	total    decimal.Decimal
	discount decimal.Decimal
	gst      decimal.Decimal
}

func (s sums) raw() decimal.Decimal {
	return s.total.Sub(s.discount).Add(s.gst)
}

func (s sums) totals(roundOff decimal.Decimal) domain.Totals {
	return domain.Totals{
		Subtotal:      money.Round2(s.total),
		TotalDiscount: money.Round2(s.discount),
		TotalGST:      money.Round2(s.gst),
		RoundOff:      roundOff,
		GrandTotal:    money.Round2(s.raw().Add(roundOff)),
	}
}

func accumulate(items []domain.LineItem, includeDrafts bool) sums {
	var s sums
	for _, item := range items {
		if item.IsDraft() && !includeDrafts {
			continue
		}
		t, d, g := LineAmounts(item)
		s.total = s.total.Add(t)
		s.discount = s.discount.Add(d)
		s.gst = s.gst.Add(g)
	}
	return s
}

// ComputeTotals reduces the committed items and a signed round-off to the
// invoice totals. Sums stay unrounded until the grand total is formed.
func ComputeTotals(items []domain.LineItem, roundOff decimal.Decimal) domain.Totals {
	return accumulate(items, false).totals(roundOff)
}

// PreviewTotals is ComputeTotals including the draft line, for the live
// on-screen figure. Its result is never persisted.
func PreviewTotals(items []domain.LineItem, roundOff decimal.Decimal) domain.Totals {
	return accumulate(items, true).totals(roundOff)
}

// DeriveRoundOff recovers the round-off of a stored invoice from its grand
// total. Feeding the result back into ComputeTotals reproduces storedGrandTotal.
func DeriveRoundOff(items []domain.LineItem, storedGrandTotal decimal.Decimal) decimal.Decimal {
	raw := accumulate(items, false).raw()
	return storedGrandTotal.Sub(money.Round2(raw))
}

// TotalReceivedUnits counts paid and free units on committed lines.
func TotalReceivedUnits(items []domain.LineItem) int {
	units := 0
	for _, item := range items {
		if item.IsDraft() {
			continue
		}
		if item.Quantity > 0 {
			units += item.Quantity
		}
		if item.FreeQuantity > 0 {
			units += item.FreeQuantity
		}
	}
	return units
}

// RoundOff keeps the sign separate from the magnitude the user types.
type RoundOff struct {
	magnitude decimal.Decimal
	negative  bool
}

func NewRoundOff(magnitude decimal.Decimal, negative bool) RoundOff {
	return RoundOff{magnitude: magnitude.Abs(), negative: negative}
}

func RoundOffFromSigned(value decimal.Decimal) RoundOff {
	return RoundOff{magnitude: value.Abs(), negative: value.IsNegative()}
}

func (r RoundOff) Toggle() RoundOff {
	r.negative = !r.negative
	return r
}

func (r RoundOff) WithMagnitude(magnitude decimal.Decimal) RoundOff {
	r.magnitude = magnitude.Abs()
	return r
}

func (r RoundOff) Magnitude() decimal.Decimal { return r.magnitude }

func (r RoundOff) Negative() bool { return r.negative }

func (r RoundOff) Value() decimal.Decimal {
	if r.negative {
		return r.magnitude.Neg()
	}
	return r.magnitude
}

// Sign is -1 or 1 as the edit screen shows it.
func (r RoundOff) Sign() int {
	if r.negative {
		return -1
	}
	return 1
}
