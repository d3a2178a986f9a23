package purchase

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

const dateLayout = "2006-01-02"

// ValidateItem is the gate a line passes to become committed. The item master
// record, when given, decides whether an expiry date is mandatory.
func ValidateItem(item domain.LineItem, master *domain.ItemMaster) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if strings.TrimSpace(item.MedicineName) == "" {
		add("medicine_name", "item name is required")
	}
	if strings.TrimSpace(item.BatchNumber) == "" {
		add("batch_number", "batch number is required")
	}
	tracking := item.ExpiryTrackingEnabled
	if master != nil {
		tracking = master.ExpiryTrackingEnabled
	}
	expiry := strings.TrimSpace(item.ExpiryDate)
	switch {
	case expiry == "" && tracking:
		add("expiry_date", "expiry date is required")
	case expiry != "":
		if _, err := time.Parse(dateLayout, expiry); err != nil {
			add("expiry_date", "expiry date must be YYYY-MM-DD")
		}
	}
	if item.Quantity <= 0 {
		add("quantity", "quantity must be greater than 0")
	}
	if !item.MRP.IsPositive() {
		add("mrp", "MRP is required")
	}
	if outOfRange(item.DiscountPercentage) {
		add("discount_percentage", "discount must be between 0 and 100")
	}
	if outOfRange(item.GSTPercentage) {
		add("gst_percentage", "GST must be between 0 and 100")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func outOfRange(pct decimal.Decimal) bool {
	return pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100))
}

// ValidateInvoiceHeader checks everything about an invoice except its lines'
// contents.
func ValidateInvoiceHeader(req domain.PurchaseInvoiceRequest) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Index: HeaderIndex, Field: field, Message: msg})
	}

	if strings.TrimSpace(req.SupplierID) == "" {
		add("supplier_id", "supplier is required")
	}
	if strings.TrimSpace(req.InvoiceNumber) == "" {
		add("invoice_number", "invoice number is required")
	}
	if strings.TrimSpace(req.InvoiceDate) == "" {
		add("invoice_date", "invoice date is required")
	} else if _, err := time.Parse(dateLayout, req.InvoiceDate); err != nil {
		add("invoice_date", "invoice date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(req.GodownID) == "" {
		add("godown_id", "godown is required")
	}

	committed := 0
	for _, item := range req.Items {
		if !item.IsDraft() {
			committed++
		}
	}
	if committed == 0 {
		add("items", "add and finish at least one item")
	}

	mode := req.PaymentMode
	if mode == "" {
		mode = domain.PaymentModeCash
	}
	if !mode.Valid() {
		add("payment_mode", "unknown payment mode")
	} else if mode.RequiresBankAccountOnInvoice() && strings.TrimSpace(req.BankAccountID) == "" {
		add("bank_id", "bank account is required")
	}
	if req.PaidAmount.IsNegative() {
		add("paid_amount", "paid amount cannot be negative")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Finalize turns a request into the invoice that will be stored. Every
// committed line passes the commit gate again, any draft is dropped and all
// figures are recomputed. masters is keyed by item master id.
func Finalize(req domain.PurchaseInvoiceRequest, masters map[string]domain.ItemMaster, roundOff decimal.Decimal) (domain.PurchaseInvoice, error) {
	sheet, err := LoadSheet(req.Items)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	var errs ValidationErrors
	if err := ValidateInvoiceHeader(req); err != nil {
		var headerErrs ValidationErrors
		if errors.As(err, &headerErrs) {
			errs = append(errs, headerErrs...)
		}
	}
	committed := sheet.Committed()
	for i, item := range committed {
		if err := ValidateItem(item, lookupMaster(masters, item.ItemMasterID)); err != nil {
			var itemErrs ValidationErrors
			if errors.As(err, &itemErrs) {
				errs = append(errs, itemErrs.withIndex(i)...)
			}
		}
	}
	if len(errs) > 0 {
		return domain.PurchaseInvoice{}, errs
	}

	mode := req.PaymentMode
	if mode == "" {
		mode = domain.PaymentModeCash
	}
	bankID := req.BankAccountID
	if !mode.RequiresBankAccountOnInvoice() {
		bankID = ""
	}

	totals := ComputeTotals(committed, roundOff)
	return domain.PurchaseInvoice{
		SupplierID:           req.SupplierID,
		SupplierName:         req.SupplierName,
		InvoiceNumber:        strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:          req.InvoiceDate,
		OrderedDate:          req.OrderedDate,
		ItemsReceivedDate:    req.ItemsReceivedDate,
		Items:                committed,
		Subtotal:             totals.Subtotal,
		TotalDiscount:        totals.TotalDiscount,
		TotalGST:             totals.TotalGST,
		RoundOff:             roundOff,
		TotalAmount:          totals.GrandTotal,
		PaidAmount:           req.PaidAmount,
		PendingAmount:        PendingAmount(totals.GrandTotal, req.PaidAmount),
		PaymentStatus:        InvoiceStatus(committed, totals.GrandTotal, req.PaidAmount),
		PaidOn:               req.PaidOn,
		PaymentMode:          mode,
		BankAccountID:        bankID,
		TransactionReference: req.TransactionReference,
		TransactionDetails:   req.TransactionDetails,
		BranchID:             req.BranchID,
		GodownID:             req.GodownID,
	}, nil
}

func lookupMaster(masters map[string]domain.ItemMaster, id string) *domain.ItemMaster {
	if id == "" {
		return nil
	}
	m, ok := masters[id]
	if !ok {
		return nil
	}
	return &m
}
