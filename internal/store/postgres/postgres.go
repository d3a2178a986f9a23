package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, email, gstin, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.Email, supplier.GSTIN, supplier.Address, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, gstin, address, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Email, &supplier.GSTIN, &supplier.Address, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	supplier.CreatedAt = supplier.CreatedAt.UTC()
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, gstin, address, created_at
		FROM suppliers
		ORDER BY lower(name) ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Email, &supplier.GSTIN, &supplier.Address, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

const itemMasterColumns = `id, name, item_type_id, category, subcategory, manufacturer, unit,
	gst_percentage, mrp, purchase_price, expiry_tracking_enabled, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItemMaster(row scanner) (domain.ItemMaster, error) {
	var item domain.ItemMaster
	err := row.Scan(&item.ID, &item.Name, &item.ItemTypeID, &item.Category, &item.Subcategory, &item.Manufacturer, &item.Unit,
		&item.GSTPercentage, &item.MRP, &item.PurchasePrice, &item.ExpiryTrackingEnabled, &item.CreatedAt)
	item.CreatedAt = item.CreatedAt.UTC()
	return item, err
}

// CreateItemMaster returns the existing record when the name is taken.
func (s *Store) CreateItemMaster(ctx context.Context, item domain.ItemMaster) (*domain.ItemMaster, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if item.ID == "" {
		item.ID = xid.New("im")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_master (`+itemMasterColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, item.ID, item.Name, item.ItemTypeID, item.Category, item.Subcategory, item.Manufacturer, item.Unit,
		item.GSTPercentage, item.MRP, item.PurchasePrice, item.ExpiryTrackingEnabled, item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := scanItemMaster(s.db.QueryRowContext(ctx, `
				SELECT `+itemMasterColumns+` FROM item_master WHERE lower(name) = lower($1)
			`, item.Name))
			if lookupErr != nil {
				return nil, lookupErr
			}
			return &existing, nil
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) GetItemMaster(ctx context.Context, id string) (*domain.ItemMaster, error) {
	item, err := scanItemMaster(s.db.QueryRowContext(ctx, `
		SELECT `+itemMasterColumns+` FROM item_master WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemMasters(ctx context.Context, ids []string) (map[string]domain.ItemMaster, error) {
	result := make(map[string]domain.ItemMaster, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemMasterColumns+` FROM item_master WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItemMaster(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListItemMaster(ctx context.Context, search string, limit int) ([]domain.ItemMaster, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemMasterColumns+`
		FROM item_master
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC
		LIMIT $2
	`, strings.TrimSpace(search), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ItemMaster, 0, limit)
	for rows.Next() {
		item, err := scanItemMaster(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const bankAccountColumns = `id, bank_name, account_name, account_number, ifsc, current_balance, active, created_at`

func scanBankAccount(row scanner) (domain.BankAccount, error) {
	var account domain.BankAccount
	err := row.Scan(&account.ID, &account.BankName, &account.AccountName, &account.AccountNumber, &account.IFSC,
		&account.CurrentBalance, &account.Active, &account.CreatedAt)
	account.CreatedAt = account.CreatedAt.UTC()
	return account, err
}

func (s *Store) CreateBankAccount(ctx context.Context, account domain.BankAccount) (*domain.BankAccount, error) {
	if strings.TrimSpace(account.BankName) == "" || strings.TrimSpace(account.AccountNumber) == "" {
		return nil, store.ErrInvalidRecord
	}
	if account.ID == "" {
		account.ID = xid.New("bank")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (`+bankAccountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, account.ID, account.BankName, account.AccountName, account.AccountNumber, account.IFSC,
		account.CurrentBalance, account.Active, account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := account
	return &created, nil
}

func (s *Store) GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	account, err := scanBankAccount(s.db.QueryRowContext(ctx, `
		SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bankAccountColumns+` FROM bank_accounts ORDER BY bank_name, account_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.BankAccount, 0, 8)
	for rows.Next() {
		account, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) ListBankTransactions(ctx context.Context, bankAccountID string, limit int) ([]domain.BankTransaction, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(bank_account_id,''), bank_name, amount, payment_mode, transaction_type,
			reference_type, reference_id, reference_number, description, transaction_date,
			party_name, party_id, created_at
		FROM bank_transactions
		WHERE ($1 = '' OR bank_account_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, bankAccountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.BankTransaction, 0, limit)
	for rows.Next() {
		var e domain.BankTransaction
		if err := rows.Scan(&e.ID, &e.BankAccountID, &e.BankName, &e.Amount, &e.PaymentMode, &e.TransactionType,
			&e.ReferenceType, &e.ReferenceID, &e.ReferenceNumber, &e.Description, &e.TransactionDate,
			&e.PartyName, &e.PartyID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// postLedger writes ledger entries and moves bank balances inside tx.
func postLedger(ctx context.Context, tx *sql.Tx, entries []domain.BankTransaction, referenceID string) error {
	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = xid.New("btx")
		}
		if entry.ReferenceID == "" {
			entry.ReferenceID = referenceID
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if entry.BankAccountID != "" {
			err := tx.QueryRowContext(ctx, `
				UPDATE bank_accounts
				SET current_balance = current_balance + $2
				WHERE id = $1
				RETURNING bank_name
			`, entry.BankAccountID, store.BalanceDelta(entry)).Scan(&entry.BankName)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: bank account %s", store.ErrInvalidRecord, entry.BankAccountID)
				}
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bank_transactions (
				id, bank_account_id, bank_name, amount, payment_mode, transaction_type,
				reference_type, reference_id, reference_number, description, transaction_date,
				party_name, party_id, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, entry.ID, nullIfEmpty(entry.BankAccountID), entry.BankName, entry.Amount, entry.PaymentMode, entry.TransactionType,
			entry.ReferenceType, entry.ReferenceID, entry.ReferenceNumber, entry.Description, entry.TransactionDate,
			entry.PartyName, entry.PartyID, entry.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

const invoiceColumns = `id, supplier_id, supplier_name, invoice_number, invoice_date, ordered_date, items_received_date,
	items, subtotal, total_discount, total_gst, round_off, total_amount, paid_amount, pending_amount,
	payment_status, paid_on, payment_mode, bank_account_id, transaction_reference, transaction_details,
	branch_id, godown_id, created_by, created_at, updated_at`

func scanInvoice(row scanner) (domain.PurchaseInvoice, error) {
	var inv domain.PurchaseInvoice
	var itemsRaw []byte
	var bankID sql.NullString
	var updatedAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.SupplierID, &inv.SupplierName, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.OrderedDate, &inv.ItemsReceivedDate,
		&itemsRaw, &inv.Subtotal, &inv.TotalDiscount, &inv.TotalGST, &inv.RoundOff, &inv.TotalAmount, &inv.PaidAmount, &inv.PendingAmount,
		&inv.PaymentStatus, &inv.PaidOn, &inv.PaymentMode, &bankID, &inv.TransactionReference, &inv.TransactionDetails,
		&inv.BranchID, &inv.GodownID, &inv.CreatedBy, &inv.CreatedAt, &updatedAt)
	if err != nil {
		return inv, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &inv.Items); err != nil {
			return inv, err
		}
	}
	if bankID.Valid {
		inv.BankAccountID = bankID.String
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	if updatedAt.Valid {
		at := updatedAt.Time.UTC()
		inv.UpdatedAt = &at
	}
	return inv, nil
}

func invoiceArgs(inv domain.PurchaseInvoice, itemsJSON []byte) []any {
	return []any{
		inv.ID, inv.SupplierID, inv.SupplierName, inv.InvoiceNumber, inv.InvoiceDate, inv.OrderedDate, inv.ItemsReceivedDate,
		itemsJSON, inv.Subtotal, inv.TotalDiscount, inv.TotalGST, inv.RoundOff, inv.TotalAmount, inv.PaidAmount, inv.PendingAmount,
		inv.PaymentStatus, inv.PaidOn, inv.PaymentMode, nullIfEmpty(inv.BankAccountID), inv.TransactionReference, inv.TransactionDetails,
		inv.BranchID, inv.GodownID, inv.CreatedBy, inv.CreatedAt, nullTime(inv.UpdatedAt),
	}
}

func (s *Store) CreatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error) {
	if invoice.SupplierID == "" || invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}
	if invoice.ID == "" {
		invoice.ID = xid.New("pur")
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	itemsJSON, err := json.Marshal(invoice.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`, invoiceArgs(invoice, itemsJSON)...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := postLedger(ctx, tx, ledger, invoice.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := invoice
	return &created, nil
}

func (s *Store) UpdatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error) {
	if invoice.ID == "" || invoice.SupplierID == "" || invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}
	itemsJSON, err := json.Marshal(invoice.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		SELECT created_by, created_at FROM purchase_invoices WHERE id = $1 FOR UPDATE
	`, invoice.ID).Scan(&invoice.CreatedBy, &invoice.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	now := time.Now().UTC()
	invoice.UpdatedAt = &now

	_, err = tx.ExecContext(ctx, `
		UPDATE purchase_invoices SET
			supplier_id = $2, supplier_name = $3, invoice_number = $4, invoice_date = $5, ordered_date = $6,
			items_received_date = $7, items = $8, subtotal = $9, total_discount = $10, total_gst = $11,
			round_off = $12, total_amount = $13, paid_amount = $14, pending_amount = $15, payment_status = $16,
			paid_on = $17, payment_mode = $18, bank_account_id = $19, transaction_reference = $20,
			transaction_details = $21, branch_id = $22, godown_id = $23, updated_at = $24
		WHERE id = $1
	`, invoice.ID, invoice.SupplierID, invoice.SupplierName, invoice.InvoiceNumber, invoice.InvoiceDate, invoice.OrderedDate,
		invoice.ItemsReceivedDate, itemsJSON, invoice.Subtotal, invoice.TotalDiscount, invoice.TotalGST,
		invoice.RoundOff, invoice.TotalAmount, invoice.PaidAmount, invoice.PendingAmount, invoice.PaymentStatus,
		invoice.PaidOn, invoice.PaymentMode, nullIfEmpty(invoice.BankAccountID), invoice.TransactionReference,
		invoice.TransactionDetails, invoice.BranchID, invoice.GodownID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	if err := postLedger(ctx, tx, ledger, invoice.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := invoice
	return &updated, nil
}

func (s *Store) GetPurchaseInvoice(ctx context.Context, id string) (*domain.PurchaseInvoice, error) {
	invoice, err := scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM purchase_invoices WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListPurchaseInvoices(ctx context.Context, filter domain.PurchaseInvoiceFilter) ([]domain.PurchaseInvoice, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM purchase_invoices
		WHERE ($1 = '' OR supplier_id = $1)
			AND ($2 = '' OR branch_id = $2)
			AND ($3 = '' OR invoice_date >= $3)
			AND ($4 = '' OR invoice_date <= $4)
			AND ($5 = '' OR payment_status = $5)
		ORDER BY invoice_date DESC, invoice_number DESC
		LIMIT $6
	`, filter.SupplierID, filter.BranchID, filter.From, filter.To, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.PurchaseInvoice, 0, 64)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) DeletePurchaseInvoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM purchase_invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOutstandingInvoices(ctx context.Context, supplierID string) ([]domain.OutstandingInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, invoice_number, invoice_date, total_amount, paid_amount, pending_amount, payment_status
		FROM purchase_invoices
		WHERE supplier_id = $1
			AND payment_status IN ('unpaid', 'partial')
			AND pending_amount > 0
		ORDER BY invoice_date ASC, invoice_number ASC
	`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.OutstandingInvoice, 0, 16)
	for rows.Next() {
		var inv domain.OutstandingInvoice
		if err := rows.Scan(&inv.ID, &inv.SupplierID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.TotalAmount,
			&inv.PaidAmount, &inv.PendingAmount, &inv.PaymentStatus); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RecordBulkPayment locks every referenced invoice, re-checks each
// allocation against the stored pending amount, then writes the new figures,
// the payment and its ledger entry in the same serializable transaction.
func (s *Store) RecordBulkPayment(ctx context.Context, payment domain.SupplierPayment, ledger *domain.BankTransaction) (*domain.SupplierPayment, error) {
	if payment.SupplierID == "" || len(payment.Invoices) == 0 {
		return nil, store.ErrInvalidRecord
	}
	if payment.ID == "" {
		payment.ID = xid.New("spay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	ids := make([]string, 0, len(payment.Invoices))
	for _, row := range payment.Invoices {
		ids = append(ids, row.PurchaseEntryID)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM purchase_invoices
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	locked := make(map[string]domain.PurchaseInvoice, len(ids))
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		locked[invoice.ID] = invoice
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, row := range payment.Invoices {
		invoice, ok := locked[row.PurchaseEntryID]
		if !ok {
			return nil, fmt.Errorf("%w: invoice %s no longer exists", store.ErrStalePending, row.PurchaseEntryID)
		}
		if err := store.ApplyAllocation(&invoice, payment, row.AmountAllocated); err != nil {
			return nil, err
		}
		locked[invoice.ID] = invoice
	}

	for _, invoice := range locked {
		_, err := tx.ExecContext(ctx, `
			UPDATE purchase_invoices
			SET paid_amount = $2, pending_amount = $3, payment_status = $4, transaction_details = $5, updated_at = now()
			WHERE id = $1
		`, invoice.ID, invoice.PaidAmount, invoice.PendingAmount, invoice.PaymentStatus, invoice.TransactionDetails)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO supplier_payments (
			id, supplier_id, supplier_name, payment_date, payment_mode, bank_account_id,
			total_paid_amount, transaction_reference, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, payment.ID, payment.SupplierID, payment.SupplierName, payment.PaymentDate, payment.PaymentMode, nullIfEmpty(payment.BankAccountID),
		payment.TotalPaidAmount, payment.TransactionReference, payment.CreatedBy, payment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	for i, row := range payment.Invoices {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO supplier_payment_allocations (payment_id, position, purchase_invoice_id, amount_allocated)
			VALUES ($1,$2,$3,$4)
		`, payment.ID, i, row.PurchaseEntryID, row.AmountAllocated)
		if err != nil {
			return nil, err
		}
	}

	if ledger != nil {
		if err := postLedger(ctx, tx, []domain.BankTransaction{*ledger}, payment.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	recorded := payment
	return &recorded, nil
}

func (s *Store) ListSupplierPayments(ctx context.Context, supplierID string, limit int) ([]domain.SupplierPayment, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, supplier_name, payment_date, payment_mode, COALESCE(bank_account_id,''),
			total_paid_amount, transaction_reference, created_by, created_at
		FROM supplier_payments
		WHERE ($1 = '' OR supplier_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.SupplierPayment, 0, limit)
	index := make(map[string]int, limit)
	for rows.Next() {
		var p domain.SupplierPayment
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.SupplierName, &p.PaymentDate, &p.PaymentMode, &p.BankAccountID,
			&p.TotalPaidAmount, &p.TransactionReference, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		index[p.ID] = len(payments)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return payments, nil
	}

	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	allocRows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, purchase_invoice_id, amount_allocated
		FROM supplier_payment_allocations
		WHERE payment_id = ANY($1)
		ORDER BY payment_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer allocRows.Close()

	for allocRows.Next() {
		var paymentID string
		var row domain.InvoiceAllocation
		if err := allocRows.Scan(&paymentID, &row.PurchaseEntryID, &row.AmountAllocated); err != nil {
			return nil, err
		}
		if i, ok := index[paymentID]; ok {
			payments[i].Invoices = append(payments[i].Invoices, row)
		}
	}
	if err := allocRows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR branch_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, branchID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RolePurchaser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,true,$4,now())
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

var _ store.Repository = (*Store)(nil)
