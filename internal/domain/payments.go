package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutstandingInvoice is the read-only view of an invoice that still has money
// owed on it.
type OutstandingInvoice struct {
	ID            string          `json:"id"`
	SupplierID    string          `json:"supplier_id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
}

// InvoiceAllocation is one row of a bulk payment plan.
type InvoiceAllocation struct {
	PurchaseEntryID string          `json:"purchase_entry_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
}

type AllocationRow struct {
	Invoice   OutstandingInvoice `json:"invoice"`
	Allocated decimal.Decimal    `json:"allocated"`
	Remaining decimal.Decimal    `json:"remaining_after"`
}

type BulkPaymentPlanRequest struct {
	SupplierID  string          `json:"supplier_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type BulkPaymentPlan struct {
	SupplierID     string          `json:"supplier_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalPending   decimal.Decimal `json:"total_pending"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Unallocated    decimal.Decimal `json:"unallocated"`
	Rows           []AllocationRow `json:"rows"`
}

// BulkPaymentRequest is submitted as one call and applied as one transaction.
type BulkPaymentRequest struct {
	SupplierID           string              `json:"supplier_id"`
	PaymentDate          string              `json:"payment_date"`
	PaymentMode          PaymentMode         `json:"payment_mode"`
	BankAccountID        string              `json:"bank_account_id,omitempty"`
	TotalPaidAmount      decimal.Decimal     `json:"total_paid_amount"`
	TransactionReference string              `json:"transaction_reference,omitempty"`
	Invoices             []InvoiceAllocation `json:"invoices"`
}

type SupplierPayment struct {
	ID                   string              `json:"id"`
	SupplierID           string              `json:"supplier_id"`
	SupplierName         string              `json:"supplier_name,omitempty"`
	PaymentDate          string              `json:"payment_date"`
	PaymentMode          PaymentMode         `json:"payment_mode"`
	BankAccountID        string              `json:"bank_account_id,omitempty"`
	TotalPaidAmount      decimal.Decimal     `json:"total_paid_amount"`
	TransactionReference string              `json:"transaction_reference,omitempty"`
	Invoices             []InvoiceAllocation `json:"invoices"`
	CreatedBy            string              `json:"created_by"`
	CreatedAt            time.Time           `json:"created_at"`
}

type SupplierBalance struct {
	SupplierID       string          `json:"supplier_id"`
	OutstandingCount int             `json:"outstanding_count"`
	TotalPending     decimal.Decimal `json:"total_pending"`
	OldestInvoice    string          `json:"oldest_invoice_date,omitempty"`
	ComputedAt       time.Time       `json:"computed_at"`
}

type BankAccount struct {
	ID             string          `json:"id"`
	BankName       string          `json:"bank_name"`
	AccountName    string          `json:"account_name"`
	AccountNumber  string          `json:"account_number"`
	IFSC           string          `json:"ifsc,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

type BankAccountCreateRequest struct {
	BankName       string          `json:"bank_name"`
	AccountName    string          `json:"account_name"`
	AccountNumber  string          `json:"account_number"`
	IFSC           string          `json:"ifsc"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

const (
	BankDebit  = "debit"
	BankCredit = "credit"
)

const (
	RefPurchaseEntry   = "purchase_entry"
	RefSupplierPayment = "bulk_purchase_payment"
)

// BankTransaction is logged automatically whenever a purchase is paid through
// a bank account.
type BankTransaction struct {
	ID              string          `json:"id"`
	BankAccountID   string          `json:"bank_account_id,omitempty"`
	BankName        string          `json:"bank_name,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	TransactionType string          `json:"transaction_type"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Description     string          `json:"description"`
	TransactionDate string          `json:"transaction_date"`
	PartyName       string          `json:"party_name,omitempty"`
	PartyID         string          `json:"party_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
