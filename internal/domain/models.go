package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemDraft     ItemStatus = "draft"
	ItemCommitted ItemStatus = "committed"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Outstanding() bool {
	return s == PaymentUnpaid || s == PaymentPartial
}

type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeCredit       PaymentMode = "credit"
	PaymentModeUPI          PaymentMode = "upi"
	PaymentModeCard         PaymentMode = "card"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
	PaymentModeCheque       PaymentMode = "cheque"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCredit, PaymentModeUPI, PaymentModeCard, PaymentModeBankTransfer, PaymentModeCheque:
		return true
	}
	return false
}

// RequiresBankAccount applies to supplier payments: anything but cash moves
// money through a bank account.
func (m PaymentMode) RequiresBankAccount() bool {
	return m != PaymentModeCash
}

// RequiresBankAccountOnInvoice applies to the paid amount entered on an
// invoice, where credit means nothing has left the bank yet.
func (m PaymentMode) RequiresBankAccountOnInvoice() bool {
	return m != PaymentModeCash && m != PaymentModeCredit
}

// LineItem is one purchased line of an invoice. Monetary fields are decoded
// leniently, see UnmarshalJSON.
type LineItem struct {
	MedicineName          string          `json:"medicine_name"`
	ItemMasterID          string          `json:"item_master_id,omitempty"`
	ItemTypeID            string          `json:"item_type_id,omitempty"`
	Category              string          `json:"category,omitempty"`
	Subcategory           string          `json:"subcategory,omitempty"`
	Manufacturer          string          `json:"manufacturer,omitempty"`
	Unit                  string          `json:"unit,omitempty"`
	BatchNumber           string          `json:"batch_number"`
	ExpiryDate            string          `json:"expiry_date,omitempty"`
	ExpiryTrackingEnabled bool            `json:"expiry_tracking_enabled"`
	Quantity              int             `json:"quantity"`
	FreeQuantity          int             `json:"free_quantity"`
	PurchasePrice         decimal.Decimal `json:"purchase_price"`
	MRP                   decimal.Decimal `json:"mrp"`
	SalesPrice            decimal.Decimal `json:"sales_price"`
	DiscountPercentage    decimal.Decimal `json:"discount_percentage"`
	GSTPercentage         decimal.Decimal `json:"gst_percentage"`
	ItemPurpose           string          `json:"item_purpose,omitempty"`
	Status                ItemStatus      `json:"status"`
}

func (li LineItem) IsDraft() bool {
	return li.Status != ItemCommitted
}

type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalGST      decimal.Decimal `json:"total_gst"`
	RoundOff      decimal.Decimal `json:"round_off"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

type PurchaseInvoice struct {
	ID                   string          `json:"id"`
	SupplierID           string          `json:"supplier_id"`
	SupplierName         string          `json:"supplier_name"`
	InvoiceNumber        string          `json:"invoice_number"`
	InvoiceDate          string          `json:"invoice_date"`
	OrderedDate          string          `json:"ordered_date,omitempty"`
	ItemsReceivedDate    string          `json:"items_received_date,omitempty"`
	Items                []LineItem      `json:"items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TotalDiscount        decimal.Decimal `json:"total_discount"`
	TotalGST             decimal.Decimal `json:"total_gst"`
	RoundOff             decimal.Decimal `json:"round_off"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	PendingAmount        decimal.Decimal `json:"pending_amount"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaidOn               string          `json:"paid_on,omitempty"`
	PaymentMode          PaymentMode     `json:"payment_mode"`
	BankAccountID        string          `json:"bank_id,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	TransactionDetails   string          `json:"transaction_details,omitempty"`
	BranchID             string          `json:"branch_id,omitempty"`
	GodownID             string          `json:"godown_id"`
	CreatedBy            string          `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            *time.Time      `json:"updated_at,omitempty"`
}

// PurchaseInvoiceRequest is the create/update payload. Items may still carry
// a draft; totals sent by clients are ignored and recomputed.
type PurchaseInvoiceRequest struct {
	SupplierID           string           `json:"supplier_id"`
	SupplierName         string           `json:"supplier_name"`
	InvoiceNumber        string           `json:"invoice_number"`
	InvoiceDate          string           `json:"invoice_date"`
	OrderedDate          string           `json:"ordered_date,omitempty"`
	ItemsReceivedDate    string           `json:"items_received_date,omitempty"`
	Items                []LineItem       `json:"items"`
	RoundOff             *decimal.Decimal `json:"round_off,omitempty"`
	PaidAmount           decimal.Decimal  `json:"paid_amount"`
	PaidOn               string           `json:"paid_on,omitempty"`
	PaymentMode          PaymentMode      `json:"payment_mode"`
	BankAccountID        string           `json:"bank_id,omitempty"`
	TransactionReference string           `json:"transaction_reference,omitempty"`
	TransactionDetails   string           `json:"transaction_details,omitempty"`
	BranchID             string           `json:"branch_id,omitempty"`
	GodownID             string           `json:"godown_id"`

	// Accepted for compatibility with clients that echo computed fields.
	TotalAmount   *decimal.Decimal `json:"total_amount,omitempty"`
	TotalDiscount *decimal.Decimal `json:"total_discount,omitempty"`
	TotalGST      *decimal.Decimal `json:"total_gst,omitempty"`
	PaymentStatus string           `json:"payment_status,omitempty"`
}

type PurchaseInvoiceFilter struct {
	SupplierID string
	BranchID   string
	From       string
	To         string
	Status     PaymentStatus
	Limit      int
}

type InvoicePreviewRequest struct {
	Items      []LineItem       `json:"items"`
	RoundOff   decimal.Decimal  `json:"round_off"`
	PaidAmount decimal.Decimal  `json:"paid_amount"`
	GrandTotal *decimal.Decimal `json:"stored_grand_total,omitempty"`
}

type ItemIssue struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type InvoicePreview struct {
	Totals         Totals          `json:"totals"`
	CommittedTotal Totals          `json:"committed_totals"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	ReceivedUnits  int             `json:"received_units"`
	DraftIssues    []ItemIssue     `json:"draft_issues,omitempty"`
}

type CommitItemRequest struct {
	Item LineItem `json:"item"`
}

type InvoiceEditState struct {
	Invoice       PurchaseInvoice `json:"invoice"`
	Totals        Totals          `json:"totals"`
	RoundOff      decimal.Decimal `json:"round_off"`
	RoundOffSign  int             `json:"round_off_sign"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	GSTIN     string    `json:"gstin,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	GSTIN   string `json:"gstin"`
	Address string `json:"address"`
}

// ItemMaster is the catalog record consulted when a line item is prefilled.
type ItemMaster struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	ItemTypeID            string          `json:"item_type_id,omitempty"`
	Category              string          `json:"category,omitempty"`
	Subcategory           string          `json:"subcategory,omitempty"`
	Manufacturer          string          `json:"manufacturer,omitempty"`
	Unit                  string          `json:"unit,omitempty"`
	GSTPercentage         decimal.Decimal `json:"gst_percentage"`
	MRP                   decimal.Decimal `json:"mrp"`
	PurchasePrice         decimal.Decimal `json:"purchase_price"`
	ExpiryTrackingEnabled bool            `json:"expiry_tracking_enabled"`
	CreatedAt             time.Time       `json:"created_at"`
}

type ItemMasterCreateRequest struct {
	Name                  string          `json:"name"`
	ItemTypeID            string          `json:"item_type_id"`
	Category              string          `json:"category"`
	Subcategory           string          `json:"subcategory"`
	Manufacturer          string          `json:"manufacturer"`
	Unit                  string          `json:"unit"`
	GSTPercentage         decimal.Decimal `json:"gst_percentage"`
	MRP                   decimal.Decimal `json:"mrp"`
	PurchasePrice         decimal.Decimal `json:"purchase_price"`
	ExpiryTrackingEnabled bool            `json:"expiry_tracking_enabled"`
}
