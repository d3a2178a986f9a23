package allocation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/money"
)

// ValidateRequest runs the submit gate over a request checked against the
// supplier's outstanding invoices. All violations are returned joined.
func ValidateRequest(req domain.BulkPaymentRequest, outstanding []domain.OutstandingInvoice) error {
	var errs []error

	if strings.TrimSpace(req.SupplierID) == "" {
		errs = append(errs, ErrSupplierRequired)
	}
	if req.PaymentDate != "" {
		if _, err := time.Parse("2006-01-02", req.PaymentDate); err != nil {
			errs = append(errs, ErrPaymentDate)
		}
	}

	allocated := decimal.Zero
	for _, row := range req.Invoices {
		allocated = allocated.Add(row.AmountAllocated)
	}
	if !money.WithinTolerance(allocated, req.TotalPaidAmount) {
		errs = append(errs, &ReconciliationError{Allocated: allocated, Total: req.TotalPaidAmount})
	}
	if !req.TotalPaidAmount.IsPositive() {
		errs = append(errs, ErrNonPositiveTotal)
	}

	mode := req.PaymentMode
	if mode == "" {
		mode = domain.PaymentModeCash
	}
	if !mode.Valid() {
		errs = append(errs, ErrPaymentMode)
	} else if mode.RequiresBankAccount() && strings.TrimSpace(req.BankAccountID) == "" {
		errs = append(errs, ErrBankAccountRequired)
	}

	byID := make(map[string]domain.OutstandingInvoice, len(outstanding))
	for _, inv := range outstanding {
		byID[inv.ID] = inv
	}
	seen := make(map[string]bool, len(req.Invoices))
	for _, row := range req.Invoices {
		if seen[row.PurchaseEntryID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateInvoice, row.PurchaseEntryID))
			continue
		}
		seen[row.PurchaseEntryID] = true

		if row.AmountAllocated.IsNegative() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNegativeAllocation, row.PurchaseEntryID))
			continue
		}
		inv, ok := byID[row.PurchaseEntryID]
		if !ok {
			if row.AmountAllocated.IsPositive() {
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownInvoice, row.PurchaseEntryID))
			}
			continue
		}
		if row.AmountAllocated.GreaterThan(inv.PendingAmount) {
			errs = append(errs, &OverAllocationError{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				Allocated:     row.AmountAllocated,
				Pending:       inv.PendingAmount,
			})
		}
	}

	return errors.Join(errs...)
}

// Normalize drops zero rows and clears the bank account for cash.
func Normalize(req domain.BulkPaymentRequest) domain.BulkPaymentRequest {
	if req.PaymentMode == "" {
		req.PaymentMode = domain.PaymentModeCash
	}
	if !req.PaymentMode.RequiresBankAccount() {
		req.BankAccountID = ""
	}
	rows := make([]domain.InvoiceAllocation, 0, len(req.Invoices))
	for _, row := range req.Invoices {
		if row.AmountAllocated.IsPositive() {
			rows = append(rows, row)
		}
	}
	req.Invoices = rows
	return req
}
