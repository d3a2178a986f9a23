package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/money"
)

// ResolvePaymentStatus derives the status from what is owed and what was
// paid. An invoice with nothing owed is never paid.
func ResolvePaymentStatus(grandTotal, paidAmount decimal.Decimal) domain.PaymentStatus {
	if !grandTotal.IsPositive() {
		return domain.PaymentUnpaid
	}
	if paidAmount.GreaterThanOrEqual(grandTotal) {
		return domain.PaymentPaid
	}
	if paidAmount.IsPositive() {
		return domain.PaymentPartial
	}
	return domain.PaymentUnpaid
}

// InvoiceStatus is ResolvePaymentStatus for a whole invoice. Without a
// committed line nothing is owed, so a round-off alone cannot make it paid.
func InvoiceStatus(committed []domain.LineItem, grandTotal, paidAmount decimal.Decimal) domain.PaymentStatus {
	if len(committed) == 0 {
		return domain.PaymentUnpaid
	}
	return ResolvePaymentStatus(grandTotal, paidAmount)
}

func PendingAmount(grandTotal, paidAmount decimal.Decimal) decimal.Decimal {
	return money.NonNegative(money.Round2(grandTotal.Sub(paidAmount)))
}
