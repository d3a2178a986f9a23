package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRejected is the root of every reason a bulk payment is refused before
// anything is recorded.
var ErrRejected = errors.New("payment allocation rejected")

var (
	ErrReconciliation      = fmt.Errorf("%w: allocations do not reconcile", ErrRejected)
	ErrBankAccountRequired = fmt.Errorf("%w: bank account is required for non-cash payments", ErrReconciliation)
	ErrOverAllocation      = fmt.Errorf("%w: allocation exceeds pending amount", ErrRejected)
	ErrNonPositiveTotal    = fmt.Errorf("%w: payment amount must be greater than 0", ErrRejected)
	ErrNegativeAllocation  = fmt.Errorf("%w: allocation cannot be negative", ErrRejected)
	ErrUnknownInvoice      = fmt.Errorf("%w: invoice is not outstanding for this supplier", ErrRejected)
	ErrDuplicateInvoice    = fmt.Errorf("%w: invoice allocated more than once", ErrRejected)
	ErrSupplierRequired    = fmt.Errorf("%w: supplier is required", ErrRejected)
	ErrPaymentMode         = fmt.Errorf("%w: unknown payment mode", ErrRejected)
	ErrPaymentDate         = fmt.Errorf("%w: payment date must be YYYY-MM-DD", ErrRejected)
)

// ReconciliationError reports an allocated sum that is more than a cent away
// from the declared payment total.
type ReconciliationError struct {
	Allocated decimal.Decimal
	Total     decimal.Decimal
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("allocated amount (%s) does not match total paid amount (%s)",
		e.Allocated.StringFixed(2), e.Total.StringFixed(2))
}

func (e *ReconciliationError) Unwrap() error { return ErrReconciliation }

// OverAllocationError names an invoice that was given more than it owes.
type OverAllocationError struct {
	InvoiceID     string
	InvoiceNumber string
	Allocated     decimal.Decimal
	Pending       decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	label := e.InvoiceNumber
	if label == "" {
		label = e.InvoiceID
	}
	return fmt.Sprintf("invoice %s: allocation %s exceeds pending amount %s",
		label, e.Allocated.StringFixed(2), e.Pending.StringFixed(2))
}

func (e *OverAllocationError) Unwrap() error { return ErrOverAllocation }

// Violations flattens a joined validation error into one message per rule.
func Violations(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, Violations(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
