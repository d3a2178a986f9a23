package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectthinkx/ds-sub001/internal/allocation"
	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/purchase"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, Options{DefaultBranchID: "main-branch"}), repo
}

func asRole(role string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: role + "-user", Role: role})
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// glovesRequest is 2 x 100 at 12% GST, a grand total of 224 before round-off.
func glovesRequest(number string) domain.PurchaseInvoiceRequest {
	return domain.PurchaseInvoiceRequest{
		SupplierID:    "sup-dentalcare",
		InvoiceNumber: number,
		InvoiceDate:   "2026-03-02",
		GodownID:      "godown-main",
		Items: []domain.LineItem{{
			MedicineName:  "Nitrile Gloves (M)",
			ItemMasterID:  "im-gloves-m",
			BatchNumber:   "NG-11",
			Quantity:      2,
			PurchasePrice: d("100"),
			MRP:           d("150"),
			GSTPercentage: d("12"),
			Status:        domain.ItemCommitted,
		}},
	}
}

type recordingEnqueuer struct {
	mu        sync.Mutex
	suppliers []string
}

func (e *recordingEnqueuer) EnqueueSupplierBalanceRefresh(_ context.Context, supplierID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suppliers = append(e.suppliers, supplierID)
	return nil
}

// staleRepo keeps serving the outstanding list it saw first, the way a
// second client holding an old screen would.
type staleRepo struct {
	*memory.Store
	snapshot map[string][]domain.OutstandingInvoice
}

func (r *staleRepo) ListOutstandingInvoices(ctx context.Context, supplierID string) ([]domain.OutstandingInvoice, error) {
	if cached, ok := r.snapshot[supplierID]; ok {
		return cached, nil
	}
	list, err := r.Store.ListOutstandingInvoices(ctx, supplierID)
	if err == nil {
		r.snapshot[supplierID] = list
	}
	return list, err
}

type brokenPaymentRepo struct {
	*memory.Store
}

func (brokenPaymentRepo) RecordBulkPayment(_ context.Context, _ domain.SupplierPayment, _ *domain.BankTransaction) (*domain.SupplierPayment, error) {
	return nil, errors.New("connection reset by peer")
}

func TestCreateInvoiceDebitsBankForNonCashPayment(t *testing.T) {
	svc, repo := newTestService()
	ctx := asRole(domain.RolePurchaser)

	req := glovesRequest("DC-100")
	req.PaymentMode = domain.PaymentModeUPI
	req.BankAccountID = "bank-main"
	req.PaidAmount = d("100")

	inv, err := svc.CreatePurchaseInvoice(ctx, req)
	require.NoError(t, err)
	assert.True(t, inv.TotalAmount.Equal(d("224")), "total %s", inv.TotalAmount)
	assert.Equal(t, domain.PaymentPartial, inv.PaymentStatus)
	assert.Equal(t, "DentalCare Supplies", inv.SupplierName)
	assert.Equal(t, "purchaser-user", inv.CreatedBy)

	ledger, err := repo.ListBankTransactions(context.Background(), "bank-main", 10)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.True(t, ledger[0].Amount.Equal(d("100")))
	assert.Equal(t, domain.RefPurchaseEntry, ledger[0].ReferenceType)
	assert.Equal(t, inv.ID, ledger[0].ReferenceID)

	bank, err := repo.GetBankAccount(context.Background(), "bank-main")
	require.NoError(t, err)
	assert.True(t, bank.CurrentBalance.Equal(d("249900")), "balance %s", bank.CurrentBalance)
}

func TestCreateInvoiceOnCreditWritesNoLedger(t *testing.T) {
	svc, repo := newTestService()

	req := glovesRequest("DC-101")
	req.PaymentMode = domain.PaymentModeCredit
	req.BankAccountID = "bank-main"

	inv, err := svc.CreatePurchaseInvoice(asRole(domain.RolePurchaser), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, inv.PaymentStatus)
	assert.Empty(t, inv.BankAccountID)

	ledger, err := repo.ListBankTransactions(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestCreateInvoiceRejectsUnknownSupplier(t *testing.T) {
	svc, _ := newTestService()

	req := glovesRequest("DC-102")
	req.SupplierID = "sup-missing"

	_, err := svc.CreatePurchaseInvoice(asRole(domain.RoleAdmin), req)
	var invalid purchase.ValidationErrors
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "supplier_id", invalid[0].Field)
}

func TestUpdateInvoiceLedgersOnlyThePaidIncrease(t *testing.T) {
	svc, repo := newTestService()
	ctx := asRole(domain.RolePurchaser)

	req := glovesRequest("DC-103")
	req.PaymentMode = domain.PaymentModeBankTransfer
	req.BankAccountID = "bank-main"
	req.PaidAmount = d("100")
	inv, err := svc.CreatePurchaseInvoice(ctx, req)
	require.NoError(t, err)

	req.PaidAmount = d("224")
	updated, err := svc.UpdatePurchaseInvoice(ctx, inv.ID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)
	assert.True(t, updated.PendingAmount.IsZero())

	ledger, err := repo.ListBankTransactions(context.Background(), "bank-main", 10)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	// newest first
	assert.True(t, ledger[0].Amount.Equal(d("124")), "increase %s", ledger[0].Amount)

	// Saving again without a change in paid amount posts nothing.
	_, err = svc.UpdatePurchaseInvoice(ctx, inv.ID, req)
	require.NoError(t, err)
	ledger, _ = repo.ListBankTransactions(context.Background(), "bank-main", 10)
	assert.Len(t, ledger, 2)
}

func TestUpdateKeepsStoredRoundOffWhenOmitted(t *testing.T) {
	svc, _ := newTestService()
	ctx := asRole(domain.RolePurchaser)

	req := glovesRequest("DC-104")
	roundOff := d("0.40")
	req.RoundOff = &roundOff
	inv, err := svc.CreatePurchaseInvoice(ctx, req)
	require.NoError(t, err)
	require.True(t, inv.TotalAmount.Equal(d("224.40")))

	req.RoundOff = nil
	updated, err := svc.UpdatePurchaseInvoice(ctx, inv.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(d("224.40")), "total %s", updated.TotalAmount)
}

func TestLoadInvoiceForEditRecoversSignedRoundOff(t *testing.T) {
	svc, _ := newTestService()
	ctx := asRole(domain.RolePurchaser)

	req := glovesRequest("DC-105")
	roundOff := d("-0.40")
	req.RoundOff = &roundOff
	req.PaidAmount = d("223.60")
	inv, err := svc.CreatePurchaseInvoice(ctx, req)
	require.NoError(t, err)

	state, err := svc.LoadInvoiceForEdit(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, state.RoundOff.Equal(d("0.40")), "magnitude %s", state.RoundOff)
	assert.Equal(t, -1, state.RoundOffSign)
	assert.True(t, state.Totals.GrandTotal.Equal(d("223.60")))
	assert.Equal(t, domain.PaymentPaid, state.PaymentStatus)

	// Loading twice yields the same state.
	again, err := svc.LoadInvoiceForEdit(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, again.Totals.GrandTotal.Equal(state.Totals.GrandTotal))
}

func TestCreateInvoiceRequiresRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreatePurchaseInvoice(context.Background(), glovesRequest("DC-106"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdatePurchaseInvoice(asRole(domain.RoleAccountant), "pur-seed-1", glovesRequest("DC-106"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPreviewReportsDraftIssues(t *testing.T) {
	svc, _ := newTestService()

	preview, err := svc.PreviewInvoice(context.Background(), domain.InvoicePreviewRequest{
		Items: []domain.LineItem{
			glovesRequest("x").Items[0],
			{MedicineName: "Amoxicillin 500mg", ItemMasterID: "im-amox-500", Quantity: 3, PurchasePrice: d("60"), Status: domain.ItemDraft},
		},
	})
	require.NoError(t, err)
	assert.True(t, preview.Totals.GrandTotal.Equal(d("404")), "live %s", preview.Totals.GrandTotal)
	assert.True(t, preview.CommittedTotal.GrandTotal.Equal(d("224")))
	assert.Equal(t, domain.PaymentUnpaid, preview.PaymentStatus)
	assert.Equal(t, 2, preview.ReceivedUnits)

	fields := map[string]bool{}
	for _, issue := range preview.DraftIssues {
		assert.Equal(t, 1, issue.Index)
		fields[issue.Field] = true
	}
	assert.True(t, fields["batch_number"])
	assert.True(t, fields["expiry_date"], "expiry tracking comes from the item master")
	assert.True(t, fields["mrp"])
}

func TestPreviewWithStoredGrandTotalDerivesRoundOff(t *testing.T) {
	svc, _ := newTestService()
	stored := d("224.50")

	preview, err := svc.PreviewInvoice(context.Background(), domain.InvoicePreviewRequest{
		Items:      glovesRequest("x").Items,
		GrandTotal: &stored,
		PaidAmount: d("224"),
	})
	require.NoError(t, err)
	assert.True(t, preview.CommittedTotal.RoundOff.Equal(d("0.50")))
	assert.True(t, preview.CommittedTotal.GrandTotal.Equal(stored))
	assert.Equal(t, domain.PaymentPartial, preview.PaymentStatus)
}

func TestPreviewWithoutCommittedLinesIsUnpaid(t *testing.T) {
	svc, _ := newTestService()

	preview, err := svc.PreviewInvoice(context.Background(), domain.InvoicePreviewRequest{
		RoundOff:   d("0.05"),
		PaidAmount: d("1"),
	})
	require.NoError(t, err)
	assert.True(t, preview.CommittedTotal.GrandTotal.Equal(d("0.05")))
	assert.Equal(t, domain.PaymentUnpaid, preview.PaymentStatus)
}

func TestUpdateKeepsBulkPaymentNotes(t *testing.T) {
	svc, _ := newTestService()

	req := glovesRequest("DC-120")
	inv, err := svc.CreatePurchaseInvoice(asRole(domain.RolePurchaser), req)
	require.NoError(t, err)

	_, err = svc.RecordBulkPayment(asRole(domain.RoleAccountant), domain.BulkPaymentRequest{
		SupplierID:      "sup-dentalcare",
		PaymentDate:     "2026-03-10",
		TotalPaidAmount: d("100"),
		Invoices:        []domain.InvoiceAllocation{{PurchaseEntryID: inv.ID, AmountAllocated: d("100")}},
	})
	require.NoError(t, err)

	// The form was opened before the payment was recorded.
	req.PaidAmount = d("100")
	req.TransactionDetails = "Delivered in two boxes"
	updated, err := svc.UpdatePurchaseInvoice(asRole(domain.RolePurchaser), inv.ID, req)
	require.NoError(t, err)
	assert.Contains(t, updated.TransactionDetails, "Delivered in two boxes")
	assert.Contains(t, updated.TransactionDetails, "Paid 100.00 on 2026-03-10 via bulk payment")
}

func TestMergeDetailsDropsNothingTwice(t *testing.T) {
	assert.Equal(t, "b\na", mergeDetails("a\nb", "b"))
	assert.Equal(t, "a", mergeDetails("a", ""))
	assert.Equal(t, "note", mergeDetails("", " note "))
}

func TestCommitItemUsesMasterExpiryFlag(t *testing.T) {
	svc, _ := newTestService()
	item := domain.LineItem{
		MedicineName: "Amoxicillin 500mg",
		ItemMasterID: "im-amox-500",
		BatchNumber:  "AMX-9",
		Quantity:     10,
		MRP:          d("95"),
	}

	_, err := svc.CommitItem(context.Background(), domain.CommitItemRequest{Item: item})
	var invalid purchase.ValidationErrors
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "expiry_date", invalid[0].Field)

	item.ExpiryDate = "2027-12-31"
	committed, err := svc.CommitItem(context.Background(), domain.CommitItemRequest{Item: item})
	require.NoError(t, err)
	assert.Equal(t, domain.ItemCommitted, committed.Status)
}

func TestPrefillItemCopiesMaster(t *testing.T) {
	svc, _ := newTestService()

	item, err := svc.PrefillItem(context.Background(), "im-lignocaine")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemDraft, item.Status)
	assert.Equal(t, "Lignocaine 2% Cartridge", item.MedicineName)
	assert.Equal(t, "Septodont", item.Manufacturer)
	assert.True(t, item.ExpiryTrackingEnabled)
	assert.True(t, item.GSTPercentage.Equal(d("12")))
	assert.True(t, item.PurchasePrice.Equal(d("1100")))

	_, err = svc.PrefillItem(context.Background(), "im-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordBulkPaymentSettlesAndSchedulesRefresh(t *testing.T) {
	repo := memory.NewSeeded()
	enqueuer := &recordingEnqueuer{}
	svc := New(repo, Options{Enqueuer: enqueuer})
	ctx := asRole(domain.RoleAccountant)

	payment, err := svc.RecordBulkPayment(ctx, domain.BulkPaymentRequest{
		SupplierID:      "sup-medline",
		PaymentDate:     "2026-03-10",
		TotalPaidAmount: d("20000"),
		Invoices: []domain.InvoiceAllocation{
			{PurchaseEntryID: "pur-seed-1", AmountAllocated: d("18480")},
			{PurchaseEntryID: "pur-seed-2", AmountAllocated: d("1520")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentModeCash, payment.PaymentMode)
	assert.Equal(t, "Medline Distributors", payment.SupplierName)

	first, err := svc.GetPurchaseInvoice(ctx, "pur-seed-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, first.PaymentStatus)
	assert.Contains(t, first.TransactionDetails, "Paid 18480.00 on 2026-03-10 via bulk payment")

	second, err := svc.GetPurchaseInvoice(ctx, "pur-seed-2")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartial, second.PaymentStatus)
	assert.True(t, second.PendingAmount.Equal(d("3542.40")), "pending %s", second.PendingAmount)

	// Cash payments leave the bank ledger alone.
	ledger, _ := repo.ListBankTransactions(context.Background(), "", 10)
	assert.Empty(t, ledger)

	assert.Equal(t, []string{"sup-medline"}, enqueuer.suppliers)

	balance, err := svc.SupplierBalance(ctx, "sup-medline")
	require.NoError(t, err)
	assert.Equal(t, 1, balance.OutstandingCount)
	assert.Equal(t, "2026-02-03", balance.OldestInvoice)
}

func TestRecordBulkPaymentRejectsInvalidRequestsBeforeStore(t *testing.T) {
	svc, repo := newTestService()
	ctx := asRole(domain.RoleAccountant)

	_, err := svc.RecordBulkPayment(ctx, domain.BulkPaymentRequest{
		SupplierID:      "sup-medline",
		PaymentMode:     domain.PaymentModeUPI,
		TotalPaidAmount: d("500"),
		Invoices: []domain.InvoiceAllocation{
			{PurchaseEntryID: "pur-seed-2", AmountAllocated: d("400")},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, allocation.ErrBankAccountRequired)
	var mismatch *allocation.ReconciliationError
	assert.True(t, errors.As(err, &mismatch))

	_, err = svc.RecordBulkPayment(ctx, domain.BulkPaymentRequest{
		SupplierID:      "sup-medline",
		PaymentMode:     domain.PaymentModeCheque,
		BankAccountID:   "bank-unknown",
		TotalPaidAmount: d("400"),
		Invoices: []domain.InvoiceAllocation{
			{PurchaseEntryID: "pur-seed-2", AmountAllocated: d("400")},
		},
	})
	assert.ErrorIs(t, err, allocation.ErrBankAccountRequired)

	inv, _ := repo.GetPurchaseInvoice(context.Background(), "pur-seed-2")
	assert.True(t, inv.PaidAmount.Equal(d("4000")), "nothing may be applied, paid %s", inv.PaidAmount)
}

func TestRecordBulkPaymentRequiresAccountantOrAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RecordBulkPayment(asRole(domain.RolePurchaser), domain.BulkPaymentRequest{SupplierID: "sup-medline"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRecordBulkPaymentAgainstStaleSnapshotIsRejected(t *testing.T) {
	repo := &staleRepo{Store: memory.NewSeeded(), snapshot: map[string][]domain.OutstandingInvoice{}}
	svc := New(repo, Options{})
	ctx := asRole(domain.RoleAccountant)

	req := domain.BulkPaymentRequest{
		SupplierID:      "sup-medline",
		TotalPaidAmount: d("5062.40"),
		Invoices: []domain.InvoiceAllocation{
			{PurchaseEntryID: "pur-seed-2", AmountAllocated: d("5062.40")},
		},
	}
	_, err := svc.RecordBulkPayment(ctx, req)
	require.NoError(t, err)

	_, err = svc.RecordBulkPayment(ctx, req)
	assert.ErrorIs(t, err, store.ErrStalePending)

	inv, _ := repo.GetPurchaseInvoice(context.Background(), "pur-seed-2")
	assert.True(t, inv.PaidAmount.Equal(d("9062.40")), "paid %s", inv.PaidAmount)
}

func TestRecordBulkPaymentWrapsStoreFailure(t *testing.T) {
	repo := brokenPaymentRepo{Store: memory.NewSeeded()}
	svc := New(repo, Options{})

	_, err := svc.RecordBulkPayment(asRole(domain.RoleAdmin), domain.BulkPaymentRequest{
		SupplierID:      "sup-medline",
		TotalPaidAmount: d("100"),
		Invoices: []domain.InvoiceAllocation{
			{PurchaseEntryID: "pur-seed-1", AmountAllocated: d("100")},
		},
	})
	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr), "got %v", err)
	assert.Equal(t, "record bulk payment", commitErr.Op)
}

func TestListPurchaseInvoicesRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ListPurchaseInvoices(context.Background(), domain.PurchaseInvoiceFilter{Status: "overdue"})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)

	invoices, err := svc.ListPurchaseInvoices(context.Background(), domain.PurchaseInvoiceFilter{Status: domain.PaymentPartial})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "pur-seed-2", invoices[0].ID)
}

func TestDeleteInvoiceIsAuditedAndAdminOnly(t *testing.T) {
	svc, _ := newTestService()

	err := svc.DeletePurchaseInvoice(asRole(domain.RolePurchaser), "pur-seed-1", "typo")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeletePurchaseInvoice(asRole(domain.RoleAdmin), "pur-seed-1", "typo"))
	_, err = svc.GetPurchaseInvoice(context.Background(), "pur-seed-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, err := svc.ListAuditLogs(context.Background(), "main-branch", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "purchase_invoice_delete", logs[0].Action)
}
