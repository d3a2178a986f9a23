package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/money"
	"github.com/projectthinkx/ds-sub001/internal/store"
)

func TestBulkPaymentLocksAndReconcilesInvoices(t *testing.T) {
	databaseURL := os.Getenv("APLEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set APLEDGER_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	supplierID := fmt.Sprintf("sup-it-%d", stamp)
	bankID := fmt.Sprintf("bank-it-%d", stamp)
	invA := fmt.Sprintf("pur-it-a-%d", stamp)
	invB := fmt.Sprintf("pur-it-b-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bank_transactions WHERE bank_account_id = $1`, bankID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM supplier_payments WHERE supplier_id = $1`, supplierID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM purchase_invoices WHERE supplier_id = $1`, supplierID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = $1`, bankID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, supplierID)
	})

	if _, err := s.CreateSupplier(ctx, domain.Supplier{ID: supplierID, Name: "Integration Supplier"}); err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	if _, err := s.CreateBankAccount(ctx, domain.BankAccount{
		ID:             bankID,
		BankName:       "IT Bank",
		AccountNumber:  fmt.Sprintf("ACC-%d", stamp),
		CurrentBalance: money.MustParse("1000"),
	}); err != nil {
		t.Fatalf("create bank: %v", err)
	}

	for _, seed := range []struct {
		id, number, date, total string
	}{
		{invA, "IT-1", "2026-01-05", "300"},
		{invB, "IT-2", "2026-02-05", "500"},
	} {
		amount := money.MustParse(seed.total)
		_, err := s.CreatePurchaseInvoice(ctx, domain.PurchaseInvoice{
			ID:            seed.id,
			SupplierID:    supplierID,
			InvoiceNumber: seed.number,
			InvoiceDate:   seed.date,
			Items:         []domain.LineItem{{MedicineName: "Gauze", BatchNumber: "G1", Quantity: 1, Status: domain.ItemCommitted}},
			TotalAmount:   amount,
			PendingAmount: amount,
			PaymentStatus: domain.PaymentUnpaid,
			PaymentMode:   domain.PaymentModeCredit,
		}, nil)
		if err != nil {
			t.Fatalf("create invoice %s: %v", seed.number, err)
		}
	}

	payment := domain.SupplierPayment{
		SupplierID:      supplierID,
		PaymentDate:     "2026-03-01",
		PaymentMode:     domain.PaymentModeBankTransfer,
		BankAccountID:   bankID,
		TotalPaidAmount: money.MustParse("700"),
		Invoices: []domain.InvoiceAllocation{
			{PurchaseEntryID: invA, AmountAllocated: money.MustParse("300")},
			{PurchaseEntryID: invB, AmountAllocated: money.MustParse("400")},
		},
	}
	ledger := &domain.BankTransaction{
		BankAccountID:   bankID,
		Amount:          money.MustParse("700"),
		PaymentMode:     domain.PaymentModeBankTransfer,
		TransactionType: domain.BankDebit,
		ReferenceType:   domain.RefSupplierPayment,
	}
	if _, err := s.RecordBulkPayment(ctx, payment, ledger); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	b, err := s.GetPurchaseInvoice(ctx, invB)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if b.PaymentStatus != domain.PaymentPartial || !b.PendingAmount.Equal(money.MustParse("100")) {
		t.Fatalf("expected partial with 100 pending, got %s / %s", b.PaymentStatus, b.PendingAmount)
	}

	bank, err := s.GetBankAccount(ctx, bankID)
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if !bank.CurrentBalance.Equal(money.MustParse("300")) {
		t.Fatalf("expected balance 300, got %s", bank.CurrentBalance)
	}

	// The same plan again no longer fits what is stored.
	if _, err := s.RecordBulkPayment(ctx, payment, nil); !errors.Is(err, store.ErrStalePending) {
		t.Fatalf("expected stale pending, got %v", err)
	}
	b, _ = s.GetPurchaseInvoice(ctx, invB)
	if !b.PaidAmount.Equal(money.MustParse("400")) {
		t.Fatalf("rejected batch must not change paid amount, got %s", b.PaidAmount)
	}

	payments, err := s.ListSupplierPayments(ctx, supplierID, 10)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || len(payments[0].Invoices) != 2 {
		t.Fatalf("expected one payment with two allocations, got %+v", payments)
	}
}
