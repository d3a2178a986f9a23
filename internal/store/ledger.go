package store

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/purchase"
)

// ApplyAllocation adds one bulk payment allocation to a stored invoice and
// re-derives its pending amount and status. The allocation is checked
// against the pending amount as stored, not as the caller last saw it.
func ApplyAllocation(invoice *domain.PurchaseInvoice, payment domain.SupplierPayment, amount decimal.Decimal) error {
	if invoice.SupplierID != payment.SupplierID {
		return fmt.Errorf("%w: invoice %s belongs to another supplier", ErrInvalidRecord, invoice.ID)
	}
	if !invoice.PaymentStatus.Outstanding() || amount.GreaterThan(invoice.PendingAmount) {
		return fmt.Errorf("%w: invoice %s has %s pending, %s allocated",
			ErrStalePending, invoice.InvoiceNumber, invoice.PendingAmount.StringFixed(2), amount.StringFixed(2))
	}

	invoice.PaidAmount = invoice.PaidAmount.Add(amount)
	invoice.PendingAmount = purchase.PendingAmount(invoice.TotalAmount, invoice.PaidAmount)
	invoice.PaymentStatus = purchase.ResolvePaymentStatus(invoice.TotalAmount, invoice.PaidAmount)

	note := fmt.Sprintf("Paid %s on %s via bulk payment", amount.StringFixed(2), payment.PaymentDate)
	if strings.TrimSpace(invoice.TransactionDetails) == "" {
		invoice.TransactionDetails = note
	} else {
		invoice.TransactionDetails = invoice.TransactionDetails + "\n" + note
	}
	return nil
}

// BalanceDelta is the change a ledger entry makes to its bank account.
func BalanceDelta(entry domain.BankTransaction) decimal.Decimal {
	if entry.TransactionType == domain.BankCredit {
		return entry.Amount
	}
	return entry.Amount.Neg()
}
