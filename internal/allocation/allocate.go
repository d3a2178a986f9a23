// Package allocation splits one supplier payment across that supplier's
// outstanding invoices, oldest debt first, and gates the result before it
// is recorded.
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

// SortOldestFirst returns the invoices that still owe money ordered by
// invoice date, then invoice number, then id. The input is not modified.
func SortOldestFirst(invoices []domain.OutstandingInvoice) []domain.OutstandingInvoice {
	out := make([]domain.OutstandingInvoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.PendingAmount.IsPositive() {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.InvoiceDate != b.InvoiceDate {
			return a.InvoiceDate < b.InvoiceDate
		}
		if a.InvoiceNumber != b.InvoiceNumber {
			return a.InvoiceNumber < b.InvoiceNumber
		}
		return a.ID < b.ID
	})
	return out
}

// AutoAllocate fills invoices in the order given, each up to its pending
// amount, until the payment is used up. Every invoice gets a row; the ones
// not reached get zero.
func AutoAllocate(invoices []domain.OutstandingInvoice, totalPayment decimal.Decimal) []domain.InvoiceAllocation {
	out := make([]domain.InvoiceAllocation, 0, len(invoices))
	remaining := totalPayment
	for _, inv := range invoices {
		amount := decimal.Zero
		if remaining.IsPositive() {
			amount = decimal.Min(remaining, inv.PendingAmount)
			if amount.IsNegative() {
				amount = decimal.Zero
			}
			remaining = remaining.Sub(amount)
		}
		out = append(out, domain.InvoiceAllocation{PurchaseEntryID: inv.ID, AmountAllocated: amount})
	}
	return out
}
