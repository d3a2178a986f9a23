package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/allocation"
	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/xid"
)

// ListOutstandingInvoices returns the supplier's unpaid and partial invoices,
// oldest first.
func (s *Service) ListOutstandingInvoices(ctx context.Context, supplierID string) ([]domain.OutstandingInvoice, error) {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return nil, allocation.ErrSupplierRequired
	}
	if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
		return nil, err
	}
	outstanding, err := s.repo.ListOutstandingInvoices(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	return allocation.SortOldestFirst(outstanding), nil
}

// PlanBulkPayment previews the oldest-first split of a payment amount.
func (s *Service) PlanBulkPayment(ctx context.Context, req domain.BulkPaymentPlanRequest) (domain.BulkPaymentPlan, error) {
	outstanding, err := s.ListOutstandingInvoices(ctx, req.SupplierID)
	if err != nil {
		return domain.BulkPaymentPlan{}, err
	}
	sheet := allocation.NewWorksheet(strings.TrimSpace(req.SupplierID), outstanding)
	sheet.SetTotal(req.TotalAmount)
	return sheet.Plan(), nil
}

// RecordBulkPayment validates the request against a fresh snapshot of the
// supplier's outstanding invoices and applies it in one store transaction.
// The store re-checks every allocation against what it holds, so a payment
// racing this one cannot push an invoice past zero pending.
func (s *Service) RecordBulkPayment(ctx context.Context, req domain.BulkPaymentRequest) (domain.SupplierPayment, error) {
	if err := requireRole(ctx, domain.RoleAdmin, domain.RoleAccountant); err != nil {
		return domain.SupplierPayment{}, err
	}

	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.PaymentDate = strings.TrimSpace(req.PaymentDate)

	var (
		supplier    *domain.Supplier
		outstanding []domain.OutstandingInvoice
		err         error
	)
	if req.SupplierID != "" {
		supplier, err = s.repo.GetSupplier(ctx, req.SupplierID)
		if err != nil {
			return domain.SupplierPayment{}, err
		}
		outstanding, err = s.repo.ListOutstandingInvoices(ctx, req.SupplierID)
		if err != nil {
			return domain.SupplierPayment{}, err
		}
	}
	if err := allocation.ValidateRequest(req, outstanding); err != nil {
		return domain.SupplierPayment{}, err
	}

	req = allocation.Normalize(req)
	if req.PaymentDate == "" {
		req.PaymentDate = s.today()
	}

	var bank *domain.BankAccount
	if req.BankAccountID != "" {
		bank, err = s.repo.GetBankAccount(ctx, req.BankAccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.SupplierPayment{}, fmt.Errorf("%w: unknown bank account %s", allocation.ErrBankAccountRequired, req.BankAccountID)
			}
			return domain.SupplierPayment{}, err
		}
	}

	payment := domain.SupplierPayment{
		ID:                   xid.New("spay"),
		SupplierID:           supplier.ID,
		SupplierName:         supplier.Name,
		PaymentDate:          req.PaymentDate,
		PaymentMode:          req.PaymentMode,
		BankAccountID:        req.BankAccountID,
		TotalPaidAmount:      req.TotalPaidAmount,
		TransactionReference: strings.TrimSpace(req.TransactionReference),
		Invoices:             req.Invoices,
		CreatedBy:            actorName(ctx),
		CreatedAt:            s.now().UTC(),
	}

	var ledger *domain.BankTransaction
	if bank != nil {
		ledger = &domain.BankTransaction{
			BankAccountID:   bank.ID,
			Amount:          payment.TotalPaidAmount,
			PaymentMode:     payment.PaymentMode,
			TransactionType: domain.BankDebit,
			ReferenceType:   domain.RefSupplierPayment,
			ReferenceID:     payment.ID,
			ReferenceNumber: payment.TransactionReference,
			Description:     fmt.Sprintf("Bulk payment to %s for %d invoice(s)", supplier.Name, len(payment.Invoices)),
			TransactionDate: payment.PaymentDate,
			PartyName:       supplier.Name,
			PartyID:         supplier.ID,
		}
	}

	saved, err := s.repo.RecordBulkPayment(ctx, payment, ledger)
	if err != nil {
		s.log.Warn().Err(err).Str("supplier_id", payment.SupplierID).Msg("bulk payment not applied")
		return domain.SupplierPayment{}, commitFailure("record bulk payment", err)
	}

	s.logAudit(ctx, "", "supplier_bulk_payment", "supplier_payment", saved.ID,
		fmt.Sprintf("supplier=%s total=%s invoices=%d mode=%s", saved.SupplierID, saved.TotalPaidAmount.StringFixed(2), len(saved.Invoices), saved.PaymentMode))
	s.supplierChanged(ctx, saved.SupplierID)
	return *saved, nil
}

func (s *Service) ListSupplierPayments(ctx context.Context, supplierID string, limit int) ([]domain.SupplierPayment, error) {
	return s.repo.ListSupplierPayments(ctx, strings.TrimSpace(supplierID), limit)
}

// SupplierBalance serves the cached summary when there is one.
func (s *Service) SupplierBalance(ctx context.Context, supplierID string) (domain.SupplierBalance, error) {
	supplierID = strings.TrimSpace(supplierID)
	if cached, ok, err := s.cache.GetSupplierBalance(ctx, supplierID); err != nil {
		s.log.Warn().Err(err).Str("supplier_id", supplierID).Msg("balance cache read failed")
	} else if ok {
		return *cached, nil
	}

	balance, err := s.RefreshSupplierBalance(ctx, supplierID)
	if err != nil {
		return domain.SupplierBalance{}, err
	}
	return *balance, nil
}

// RefreshSupplierBalance recomputes the summary from the store and caches it.
func (s *Service) RefreshSupplierBalance(ctx context.Context, supplierID string) (*domain.SupplierBalance, error) {
	outstanding, err := s.ListOutstandingInvoices(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	balance := &domain.SupplierBalance{
		SupplierID:       strings.TrimSpace(supplierID),
		OutstandingCount: len(outstanding),
		TotalPending:     decimal.Zero,
		ComputedAt:       s.now().UTC(),
	}
	for _, inv := range outstanding {
		balance.TotalPending = balance.TotalPending.Add(inv.PendingAmount)
	}
	if len(outstanding) > 0 {
		balance.OldestInvoice = outstanding[0].InvoiceDate
	}

	if err := s.cache.SetSupplierBalance(ctx, balance, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("supplier_id", supplierID).Msg("balance cache write failed")
	}
	return balance, nil
}
