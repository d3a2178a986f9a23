package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

type PaymentDetails struct {
	PaymentDate          string
	PaymentMode          domain.PaymentMode
	BankAccountID        string
	TransactionReference string
}

// Worksheet is the bulk payment being prepared for one supplier. Nothing in
// it is persisted; throwing it away has no side effects.
type Worksheet struct {
	supplierID  string
	invoices    []domain.OutstandingInvoice
	total       decimal.Decimal
	allocations map[string]decimal.Decimal
	details     PaymentDetails
}

// NewWorksheet takes a snapshot of the outstanding invoices. Rows start at
// zero until a total is set.
func NewWorksheet(supplierID string, outstanding []domain.OutstandingInvoice) *Worksheet {
	w := &Worksheet{
		supplierID:  supplierID,
		invoices:    SortOldestFirst(outstanding),
		allocations: make(map[string]decimal.Decimal),
		details:     PaymentDetails{PaymentMode: domain.PaymentModeCash},
	}
	for _, inv := range w.invoices {
		w.allocations[inv.ID] = decimal.Zero
	}
	return w
}

// SetTotal changes the payment amount and re-runs auto allocation, replacing
// any manual overrides.
func (w *Worksheet) SetTotal(total decimal.Decimal) {
	w.total = total
	w.AutoAllocate()
}

func (w *Worksheet) AutoAllocate() {
	for _, row := range AutoAllocate(w.invoices, w.total) {
		w.allocations[row.PurchaseEntryID] = row.AmountAllocated
	}
}

// Override sets one row by hand. Other rows are left alone.
func (w *Worksheet) Override(invoiceID string, amount decimal.Decimal) error {
	if _, ok := w.allocations[invoiceID]; !ok {
		return ErrUnknownInvoice
	}
	w.allocations[invoiceID] = amount
	return nil
}

func (w *Worksheet) SetPayment(details PaymentDetails) {
	w.details = details
}

func (w *Worksheet) Total() decimal.Decimal { return w.total }

func (w *Worksheet) Allocated() decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range w.invoices {
		sum = sum.Add(w.allocations[inv.ID])
	}
	return sum
}

// Remaining is the part of the total not yet assigned to any invoice.
func (w *Worksheet) Remaining() decimal.Decimal {
	return w.total.Sub(w.Allocated())
}

func (w *Worksheet) Allocation(invoiceID string) (decimal.Decimal, bool) {
	amount, ok := w.allocations[invoiceID]
	return amount, ok
}

func (w *Worksheet) Rows() []domain.AllocationRow {
	rows := make([]domain.AllocationRow, 0, len(w.invoices))
	for _, inv := range w.invoices {
		amount := w.allocations[inv.ID]
		rows = append(rows, domain.AllocationRow{
			Invoice:   inv,
			Allocated: amount,
			Remaining: inv.PendingAmount.Sub(amount),
		})
	}
	return rows
}

func (w *Worksheet) request() domain.BulkPaymentRequest {
	rows := make([]domain.InvoiceAllocation, 0, len(w.invoices))
	for _, inv := range w.invoices {
		rows = append(rows, domain.InvoiceAllocation{PurchaseEntryID: inv.ID, AmountAllocated: w.allocations[inv.ID]})
	}
	return domain.BulkPaymentRequest{
		SupplierID:           w.supplierID,
		PaymentDate:          w.details.PaymentDate,
		PaymentMode:          w.details.PaymentMode,
		BankAccountID:        w.details.BankAccountID,
		TotalPaidAmount:      w.total,
		TransactionReference: w.details.TransactionReference,
		Invoices:             rows,
	}
}

func (w *Worksheet) Validate() error {
	return ValidateRequest(w.request(), w.invoices)
}

// Submission returns the single request that records the whole payment:
// rows with a positive amount, oldest first.
func (w *Worksheet) Submission() (domain.BulkPaymentRequest, error) {
	req := w.request()
	if err := ValidateRequest(req, w.invoices); err != nil {
		return domain.BulkPaymentRequest{}, err
	}
	return Normalize(req), nil
}

// Plan summarises the worksheet for display.
func (w *Worksheet) Plan() domain.BulkPaymentPlan {
	pending := decimal.Zero
	for _, inv := range w.invoices {
		pending = pending.Add(inv.PendingAmount)
	}
	allocated := w.Allocated()
	return domain.BulkPaymentPlan{
		SupplierID:     w.supplierID,
		TotalAmount:    w.total,
		TotalPending:   pending,
		TotalAllocated: allocated,
		Unallocated:    w.total.Sub(allocated),
		Rows:           w.Rows(),
	}
}
