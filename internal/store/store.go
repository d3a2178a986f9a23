package store

import (
	"context"
	"errors"
	"time"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrDuplicate     = errors.New("duplicate record")
	// ErrStalePending means an allocation no longer fits the pending amount
	// currently stored for its invoice, usually because another payment
	// landed first. Nothing in the batch is applied.
	ErrStalePending = errors.New("pending amount changed since the allocation was prepared")
)

type Repository interface {
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	CreateItemMaster(ctx context.Context, item domain.ItemMaster) (*domain.ItemMaster, error)
	GetItemMaster(ctx context.Context, id string) (*domain.ItemMaster, error)
	GetItemMasters(ctx context.Context, ids []string) (map[string]domain.ItemMaster, error)
	ListItemMaster(ctx context.Context, search string, limit int) ([]domain.ItemMaster, error)

	CreateBankAccount(ctx context.Context, account domain.BankAccount) (*domain.BankAccount, error)
	GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error)
	ListBankTransactions(ctx context.Context, bankAccountID string, limit int) ([]domain.BankTransaction, error)

	// CreatePurchaseInvoice and UpdatePurchaseInvoice write the invoice and
	// its ledger entries in one transaction.
	CreatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error)
	UpdatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error)
	GetPurchaseInvoice(ctx context.Context, id string) (*domain.PurchaseInvoice, error)
	ListPurchaseInvoices(ctx context.Context, filter domain.PurchaseInvoiceFilter) ([]domain.PurchaseInvoice, error)
	DeletePurchaseInvoice(ctx context.Context, id string) error
	ListOutstandingInvoices(ctx context.Context, supplierID string) ([]domain.OutstandingInvoice, error)

	// RecordBulkPayment applies every allocation of payment or none of them.
	RecordBulkPayment(ctx context.Context, payment domain.SupplierPayment, ledger *domain.BankTransaction) (*domain.SupplierPayment, error)
	ListSupplierPayments(ctx context.Context, supplierID string, limit int) ([]domain.SupplierPayment, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
