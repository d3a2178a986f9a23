package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/purchase"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/xid"
)

// PreviewInvoice computes the live figures for an invoice being edited. The
// draft line counts toward Totals but never toward CommittedTotal, which is
// what gets saved and what the payment status follows.
func (s *Service) PreviewInvoice(ctx context.Context, req domain.InvoicePreviewRequest) (domain.InvoicePreview, error) {
	sheet, err := purchase.LoadSheet(req.Items)
	if err != nil {
		return domain.InvoicePreview{}, err
	}

	committed := sheet.Committed()
	roundOff := req.RoundOff
	if req.GrandTotal != nil {
		roundOff = purchase.DeriveRoundOff(committed, *req.GrandTotal)
	}

	committedTotals := sheet.Totals(roundOff)
	preview := domain.InvoicePreview{
		Totals:         sheet.PreviewTotals(roundOff),
		CommittedTotal: committedTotals,
		PaymentStatus:  purchase.InvoiceStatus(committed, committedTotals.GrandTotal, req.PaidAmount),
		PendingAmount:  purchase.PendingAmount(committedTotals.GrandTotal, req.PaidAmount),
		ReceivedUnits:  purchase.TotalReceivedUnits(committed),
	}

	if draft, ok := sheet.Draft(); ok {
		master, err := s.lookupItemMaster(ctx, draft.ItemMasterID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.InvoicePreview{}, err
		}
		var issues purchase.ValidationErrors
		if errors.As(purchase.ValidateItem(draft, master), &issues) {
			for _, issue := range issues.Issues() {
				issue.Index = len(committed)
				preview.DraftIssues = append(preview.DraftIssues, issue)
			}
		}
	}
	return preview, nil
}

// CommitItem runs the commit gate for a single line. On success the line is
// returned with status committed.
func (s *Service) CommitItem(ctx context.Context, req domain.CommitItemRequest) (domain.LineItem, error) {
	master, err := s.lookupItemMaster(ctx, strings.TrimSpace(req.Item.ItemMasterID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.LineItem{}, err
	}

	sheet := purchase.NewSheet()
	if err := sheet.AddDraft(req.Item); err != nil {
		return domain.LineItem{}, err
	}
	return sheet.CommitDraft(master)
}

// PrefillItem starts a draft line from an item master record.
func (s *Service) PrefillItem(ctx context.Context, itemMasterID string) (domain.LineItem, error) {
	master, err := s.lookupItemMaster(ctx, strings.TrimSpace(itemMasterID))
	if err != nil {
		return domain.LineItem{}, err
	}
	if master == nil {
		return domain.LineItem{}, store.ErrNotFound
	}

	item := purchase.NewDraftItem()
	item.MedicineName = master.Name
	item.ItemMasterID = master.ID
	item.ItemTypeID = master.ItemTypeID
	item.Category = master.Category
	item.Subcategory = master.Subcategory
	item.Manufacturer = master.Manufacturer
	item.Unit = master.Unit
	item.ExpiryTrackingEnabled = master.ExpiryTrackingEnabled
	item.MRP = master.MRP
	item.PurchasePrice = master.PurchasePrice
	if master.GSTPercentage.IsPositive() {
		item.GSTPercentage = master.GSTPercentage
	}
	return item, nil
}

func (s *Service) CreatePurchaseInvoice(ctx context.Context, req domain.PurchaseInvoiceRequest) (domain.PurchaseInvoice, error) {
	if err := requireRole(ctx, domain.RoleAdmin, domain.RolePurchaser, domain.RoleAccountant); err != nil {
		return domain.PurchaseInvoice{}, err
	}

	roundOff := decimal.Zero
	if req.RoundOff != nil {
		roundOff = *req.RoundOff
	}
	invoice, err := s.finalize(ctx, req, roundOff)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	invoice.ID = xid.New("pur")
	invoice.CreatedBy = actorName(ctx)
	invoice.CreatedAt = s.now().UTC()

	var ledger []domain.BankTransaction
	if entry, ok := invoiceLedgerEntry(invoice, invoice.PaidAmount, s.today()); ok {
		ledger = append(ledger, entry)
	}

	saved, err := s.repo.CreatePurchaseInvoice(ctx, invoice, ledger)
	if err != nil {
		return domain.PurchaseInvoice{}, commitFailure("create purchase invoice", err)
	}

	s.logAudit(ctx, saved.BranchID, "purchase_invoice_create", "purchase_invoice", saved.ID,
		fmt.Sprintf("number=%s total=%s paid=%s status=%s", saved.InvoiceNumber, saved.TotalAmount.StringFixed(2), saved.PaidAmount.StringFixed(2), saved.PaymentStatus))
	s.supplierChanged(ctx, saved.SupplierID)
	return *saved, nil
}

// UpdatePurchaseInvoice recomputes everything from the submitted lines. A
// nil round-off keeps the one implied by the stored grand total.
func (s *Service) UpdatePurchaseInvoice(ctx context.Context, id string, req domain.PurchaseInvoiceRequest) (domain.PurchaseInvoice, error) {
	if err := requireRole(ctx, domain.RoleAdmin, domain.RolePurchaser); err != nil {
		return domain.PurchaseInvoice{}, err
	}

	existing, err := s.repo.GetPurchaseInvoice(ctx, id)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	roundOff := purchase.DeriveRoundOff(existing.Items, existing.TotalAmount)
	if req.RoundOff != nil {
		roundOff = *req.RoundOff
	}
	invoice, err := s.finalize(ctx, req, roundOff)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}
	invoice.ID = existing.ID
	invoice.TransactionDetails = mergeDetails(existing.TransactionDetails, invoice.TransactionDetails)

	var ledger []domain.BankTransaction
	if increase := invoice.PaidAmount.Sub(existing.PaidAmount); increase.IsPositive() {
		if entry, ok := invoiceLedgerEntry(invoice, increase, s.today()); ok {
			ledger = append(ledger, entry)
		}
	}

	saved, err := s.repo.UpdatePurchaseInvoice(ctx, invoice, ledger)
	if err != nil {
		return domain.PurchaseInvoice{}, commitFailure("update purchase invoice", err)
	}

	s.logAudit(ctx, saved.BranchID, "purchase_invoice_update", "purchase_invoice", saved.ID,
		fmt.Sprintf("number=%s total=%s paid=%s status=%s", saved.InvoiceNumber, saved.TotalAmount.StringFixed(2), saved.PaidAmount.StringFixed(2), saved.PaymentStatus))
	s.supplierChanged(ctx, saved.SupplierID)
	if existing.SupplierID != saved.SupplierID {
		s.supplierChanged(ctx, existing.SupplierID)
	}
	return *saved, nil
}

func (s *Service) finalize(ctx context.Context, req domain.PurchaseInvoiceRequest, roundOff decimal.Decimal) (domain.PurchaseInvoice, error) {
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if id := strings.TrimSpace(item.ItemMasterID); id != "" {
			ids = append(ids, id)
		}
	}
	masters, err := s.repo.GetItemMasters(ctx, ids)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	invoice, err := purchase.Finalize(req, masters, roundOff)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	supplier, err := s.repo.GetSupplier(ctx, invoice.SupplierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PurchaseInvoice{}, purchase.ValidationErrors{{
				Index: purchase.HeaderIndex, Field: "supplier_id", Message: "unknown supplier",
			}}
		}
		return domain.PurchaseInvoice{}, err
	}
	invoice.SupplierName = supplier.Name
	invoice.BranchID = defaultString(invoice.BranchID, s.defaultBranchID)
	return invoice, nil
}

// mergeDetails keeps every stored note line the submitted text no longer
// carries, so payment notes written by the store survive an edit made from
// an older copy of the form.
func mergeDetails(stored, submitted string) string {
	submitted = strings.TrimSpace(submitted)
	seen := make(map[string]bool)
	for _, line := range strings.Split(submitted, "\n") {
		seen[strings.TrimSpace(line)] = true
	}

	out := submitted
	for _, line := range strings.Split(stored, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		if out == "" {
			out = line
		} else {
			out += "\n" + line
		}
	}
	return out
}

// invoiceLedgerEntry is the bank debit for money paid on an invoice through
// a bank account.
func invoiceLedgerEntry(invoice domain.PurchaseInvoice, amount decimal.Decimal, today string) (domain.BankTransaction, bool) {
	if !amount.IsPositive() || !invoice.PaymentMode.RequiresBankAccountOnInvoice() || invoice.BankAccountID == "" {
		return domain.BankTransaction{}, false
	}
	return domain.BankTransaction{
		BankAccountID:   invoice.BankAccountID,
		Amount:          amount,
		PaymentMode:     invoice.PaymentMode,
		TransactionType: domain.BankDebit,
		ReferenceType:   domain.RefPurchaseEntry,
		ReferenceID:     invoice.ID,
		ReferenceNumber: defaultString(invoice.TransactionReference, invoice.InvoiceNumber),
		Description:     fmt.Sprintf("Purchase payment to %s for invoice %s", invoice.SupplierName, invoice.InvoiceNumber),
		TransactionDate: defaultString(invoice.PaidOn, today),
		PartyName:       invoice.SupplierName,
		PartyID:         invoice.SupplierID,
	}, true
}

func (s *Service) GetPurchaseInvoice(ctx context.Context, id string) (domain.PurchaseInvoice, error) {
	invoice, err := s.repo.GetPurchaseInvoice(ctx, id)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}
	return *invoice, nil
}

// LoadInvoiceForEdit reconstructs the edit screen state. The round-off is
// derived from the stored grand total so re-saving without edits reproduces
// the same figures.
func (s *Service) LoadInvoiceForEdit(ctx context.Context, id string) (domain.InvoiceEditState, error) {
	invoice, err := s.repo.GetPurchaseInvoice(ctx, id)
	if err != nil {
		return domain.InvoiceEditState{}, err
	}

	roundOff := purchase.RoundOffFromSigned(purchase.DeriveRoundOff(invoice.Items, invoice.TotalAmount))
	totals := purchase.ComputeTotals(invoice.Items, roundOff.Value())
	return domain.InvoiceEditState{
		Invoice:       *invoice,
		Totals:        totals,
		RoundOff:      roundOff.Magnitude(),
		RoundOffSign:  roundOff.Sign(),
		PaymentStatus: purchase.InvoiceStatus(invoice.Items, totals.GrandTotal, invoice.PaidAmount),
	}, nil
}

func (s *Service) ListPurchaseInvoices(ctx context.Context, filter domain.PurchaseInvoiceFilter) ([]domain.PurchaseInvoice, error) {
	if filter.Status != "" && filter.Status != domain.PaymentUnpaid && filter.Status != domain.PaymentPartial && filter.Status != domain.PaymentPaid {
		return nil, store.ErrInvalidRecord
	}
	return s.repo.ListPurchaseInvoices(ctx, filter)
}

func (s *Service) DeletePurchaseInvoice(ctx context.Context, id string, reason string) error {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}

	invoice, err := s.repo.GetPurchaseInvoice(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePurchaseInvoice(ctx, id); err != nil {
		return commitFailure("delete purchase invoice", err)
	}

	s.logAudit(ctx, invoice.BranchID, "purchase_invoice_delete", "purchase_invoice", id,
		fmt.Sprintf("number=%s paid=%s reason=%s", invoice.InvoiceNumber, invoice.PaidAmount.StringFixed(2), strings.TrimSpace(reason)))
	s.supplierChanged(ctx, invoice.SupplierID)
	return nil
}

func (s *Service) today() string {
	return s.now().Format("2006-01-02")
}
