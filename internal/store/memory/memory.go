package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/logger"
	"github.com/projectthinkx/ds-sub001/internal/money"
	"github.com/projectthinkx/ds-sub001/internal/purchase"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	suppliersByID    map[string]domain.Supplier
	itemMasterByID   map[string]domain.ItemMaster
	bankAccountsByID map[string]domain.BankAccount
	bankTransactions []domain.BankTransaction
	invoicesByID     map[string]domain.PurchaseInvoice
	paymentsByID     map[string]domain.SupplierPayment
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// New returns an empty store.
func New() *Store {
	return &Store{
		suppliersByID:    make(map[string]domain.Supplier),
		itemMasterByID:   make(map[string]domain.ItemMaster),
		bankAccountsByID: make(map[string]domain.BankAccount),
		bankTransactions: make([]domain.BankTransaction, 0, 64),
		invoicesByID:     make(map[string]domain.PurchaseInvoice),
		paymentsByID:     make(map[string]domain.SupplierPayment),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD, SEED_PURCHASER_PASSWORD and SEED_ACCOUNTANT_PASSWORD;
// unset ones fall back to dev defaults with a warning. The postgres and mongo
// stores never seed users.
func seedUsers() map[string]domain.UserAccount {
	lg := logger.WithComponent("memory-store")
	accounts := []struct {
		username string
		envKey   string
		fallback string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", "admin123", domain.RoleAdmin},
		{"purchaser", "SEED_PURCHASER_PASSWORD", "purchaser123", domain.RolePurchaser},
		{"accountant", "SEED_ACCOUNTANT_PASSWORD", "accountant123", domain.RoleAccountant},
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, a := range accounts {
		password := os.Getenv(a.envKey)
		if password == "" {
			lg.Warn().Str("user", a.username).Msgf("using default dev credentials, set %s to override", a.envKey)
			password = a.fallback
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			lg.Fatal().Err(err).Str("user", a.username).Msg("failed to hash seed password")
		}
		users[a.username] = domain.UserAccount{
			Username:  a.username,
			Password:  string(hash),
			Role:      a.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

// NewSeeded returns a store with demo master data, two open invoices and the
// seed users.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	s.suppliersByID["sup-medline"] = domain.Supplier{
		ID: "sup-medline", Name: "Medline Distributors", Phone: "+91 98450 11223", GSTIN: "29ABCDE1234F1Z5", CreatedAt: now,
	}
	s.suppliersByID["sup-dentalcare"] = domain.Supplier{
		ID: "sup-dentalcare", Name: "DentalCare Supplies", Phone: "+91 98860 44556", CreatedAt: now.Add(time.Second),
	}

	for _, item := range []domain.ItemMaster{
		{ID: "im-amox-500", Name: "Amoxicillin 500mg", Category: "Medicine", Subcategory: "Antibiotic", Manufacturer: "Cipla", Unit: "strip", GSTPercentage: money.MustParse("12"), MRP: money.MustParse("95"), PurchasePrice: money.MustParse("62.5"), ExpiryTrackingEnabled: true},
		{ID: "im-lignocaine", Name: "Lignocaine 2% Cartridge", Category: "Medicine", Subcategory: "Anaesthetic", Manufacturer: "Septodont", Unit: "box", GSTPercentage: money.MustParse("12"), MRP: money.MustParse("1450"), PurchasePrice: money.MustParse("1100"), ExpiryTrackingEnabled: true},
		{ID: "im-gloves-m", Name: "Nitrile Gloves (M)", Category: "Consumable", Subcategory: "Protective", Manufacturer: "Kimberly-Clark", Unit: "box", GSTPercentage: money.MustParse("18"), MRP: money.MustParse("650"), PurchasePrice: money.MustParse("480")},
		{ID: "im-composite-a2", Name: "Composite Resin A2", Category: "Dental Material", Subcategory: "Restorative", Manufacturer: "3M", Unit: "syringe", GSTPercentage: money.MustParse("18"), MRP: money.MustParse("2400"), PurchasePrice: money.MustParse("1850"), ExpiryTrackingEnabled: true},
	} {
		item.CreatedAt = now
		s.itemMasterByID[item.ID] = item
	}

	s.bankAccountsByID["bank-main"] = domain.BankAccount{
		ID: "bank-main", BankName: "HDFC Bank", AccountName: "Clinic Operations", AccountNumber: "50200012345678",
		IFSC: "HDFC0001234", CurrentBalance: money.MustParse("250000"), Active: true, CreatedAt: now,
	}

	for _, inv := range []domain.PurchaseInvoice{
		seedInvoice("pur-seed-1", "MD-2041", "2026-01-12", "0", domain.LineItem{
			MedicineName: "Lignocaine 2% Cartridge", ItemMasterID: "im-lignocaine", BatchNumber: "LG-2207", ExpiryDate: "2027-06-30",
			ExpiryTrackingEnabled: true, Quantity: 15, PurchasePrice: money.MustParse("1100"), MRP: money.MustParse("1450"), GSTPercentage: money.MustParse("12"),
		}),
		seedInvoice("pur-seed-2", "MD-2107", "2026-02-03", "4000", domain.LineItem{
			MedicineName: "Nitrile Gloves (M)", ItemMasterID: "im-gloves-m", BatchNumber: "NG-0931",
			Quantity: 16, FreeQuantity: 2, PurchasePrice: money.MustParse("480"), MRP: money.MustParse("650"), GSTPercentage: money.MustParse("18"),
		}),
	} {
		inv.CreatedAt = now
		s.invoicesByID[inv.ID] = inv
	}
	return s
}

// seedInvoice builds a credit purchase from one line: 15 x 1100 + 12% GST
// gives 18480.00 and 16 x 480 + 18% gives 9062.40.
func seedInvoice(id string, number string, date string, paid string, item domain.LineItem) domain.PurchaseInvoice {
	item.Status = domain.ItemCommitted
	items := []domain.LineItem{item}
	totals := purchase.ComputeTotals(items, decimal.Zero)
	paidAmount := money.MustParse(paid)
	return domain.PurchaseInvoice{
		ID:            id,
		SupplierID:    "sup-medline",
		SupplierName:  "Medline Distributors",
		InvoiceNumber: number,
		InvoiceDate:   date,
		Items:         items,
		Subtotal:      totals.Subtotal,
		TotalDiscount: totals.TotalDiscount,
		TotalGST:      totals.TotalGST,
		RoundOff:      totals.RoundOff,
		TotalAmount:   totals.GrandTotal,
		PaidAmount:    paidAmount,
		PendingAmount: purchase.PendingAmount(totals.GrandTotal, paidAmount),
		PaymentStatus: purchase.ResolvePaymentStatus(totals.GrandTotal, paidAmount),
		PaymentMode:   domain.PaymentModeCredit,
		GodownID:      "godown-main",
		BranchID:      "main-branch",
		CreatedBy:     "seed",
	}
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return suppliers, nil
}

// CreateItemMaster returns the existing record when one with the same name
// is already present.
func (s *Store) CreateItemMaster(_ context.Context, item domain.ItemMaster) (*domain.ItemMaster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	for _, existing := range s.itemMasterByID {
		if strings.EqualFold(existing.Name, item.Name) {
			found := existing
			return &found, nil
		}
	}
	if item.ID == "" {
		item.ID = xid.New("im")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.itemMasterByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetItemMaster(_ context.Context, id string) (*domain.ItemMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.itemMasterByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetItemMasters(_ context.Context, ids []string) (map[string]domain.ItemMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.ItemMaster, len(ids))
	for _, id := range ids {
		if item, ok := s.itemMasterByID[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) ListItemMaster(_ context.Context, search string, limit int) ([]domain.ItemMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	search = strings.ToLower(strings.TrimSpace(search))
	items := make([]domain.ItemMaster, 0, len(s.itemMasterByID))
	for _, item := range s.itemMasterByID {
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.ItemMaster) int {
		return cmpString(a.Name, b.Name)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) CreateBankAccount(_ context.Context, account domain.BankAccount) (*domain.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(account.BankName) == "" || strings.TrimSpace(account.AccountNumber) == "" {
		return nil, store.ErrInvalidRecord
	}
	for _, existing := range s.bankAccountsByID {
		if existing.AccountNumber == account.AccountNumber {
			return nil, store.ErrDuplicate
		}
	}
	if account.ID == "" {
		account.ID = xid.New("bank")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Active = true
	s.bankAccountsByID[account.ID] = account
	created := account
	return &created, nil
}

func (s *Store) GetBankAccount(_ context.Context, id string) (*domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.bankAccountsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &account, nil
}

func (s *Store) ListBankAccounts(_ context.Context) ([]domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]domain.BankAccount, 0, len(s.bankAccountsByID))
	for _, account := range s.bankAccountsByID {
		accounts = append(accounts, account)
	}
	slices.SortFunc(accounts, func(a, b domain.BankAccount) int {
		return cmpString(a.BankName+a.AccountNumber, b.BankName+b.AccountNumber)
	})
	return accounts, nil
}

func (s *Store) ListBankTransactions(_ context.Context, bankAccountID string, limit int) ([]domain.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.BankTransaction, 0, 64)
	for i := len(s.bankTransactions) - 1; i >= 0; i-- {
		entry := s.bankTransactions[i]
		if bankAccountID != "" && entry.BankAccountID != bankAccountID {
			continue
		}
		result = append(result, entry)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// postLedger must be called with the write lock held. It checks every entry
// before applying any of them.
func (s *Store) postLedger(entries []domain.BankTransaction, referenceID string) error {
	for _, entry := range entries {
		if entry.BankAccountID == "" {
			continue
		}
		if _, ok := s.bankAccountsByID[entry.BankAccountID]; !ok {
			return fmt.Errorf("%w: bank account %s", store.ErrInvalidRecord, entry.BankAccountID)
		}
	}
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
		if account, ok := s.bankAccountsByID[entry.BankAccountID]; ok {
			entry.BankName = account.BankName
			account.CurrentBalance = account.CurrentBalance.Add(store.BalanceDelta(entry))
			s.bankAccountsByID[account.ID] = account
		}
		s.bankTransactions = append(s.bankTransactions, entry)
	}
	return nil
}

func (s *Store) duplicateInvoice(invoice domain.PurchaseInvoice) bool {
	for _, existing := range s.invoicesByID {
		if existing.ID != invoice.ID && existing.SupplierID == invoice.SupplierID &&
			strings.EqualFold(existing.InvoiceNumber, invoice.InvoiceNumber) {
			return true
		}
	}
	return false
}

func (s *Store) CreatePurchaseInvoice(_ context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error) {
	if invoice.SupplierID == "" || invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if invoice.ID == "" {
		invoice.ID = xid.New("pur")
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	if s.duplicateInvoice(invoice) {
		return nil, store.ErrDuplicate
	}
	if err := s.postLedger(ledger, invoice.ID); err != nil {
		return nil, err
	}

	s.invoicesByID[invoice.ID] = cloneInvoice(invoice)
	created := cloneInvoice(invoice)
	return &created, nil
}

func (s *Store) UpdatePurchaseInvoice(_ context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error) {
	if invoice.ID == "" || invoice.SupplierID == "" || invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.invoicesByID[invoice.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.duplicateInvoice(invoice) {
		return nil, store.ErrDuplicate
	}
	if err := s.postLedger(ledger, invoice.ID); err != nil {
		return nil, err
	}

	invoice.CreatedAt = existing.CreatedAt
	invoice.CreatedBy = existing.CreatedBy
	now := time.Now().UTC()
	invoice.UpdatedAt = &now
	s.invoicesByID[invoice.ID] = cloneInvoice(invoice)
	updated := cloneInvoice(invoice)
	return &updated, nil
}

func (s *Store) GetPurchaseInvoice(_ context.Context, id string) (*domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneInvoice(invoice)
	return &found, nil
}

func (s *Store) ListPurchaseInvoices(_ context.Context, filter domain.PurchaseInvoiceFilter) ([]domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	result := make([]domain.PurchaseInvoice, 0, 64)
	for _, invoice := range s.invoicesByID {
		if filter.SupplierID != "" && invoice.SupplierID != filter.SupplierID {
			continue
		}
		if filter.BranchID != "" && invoice.BranchID != filter.BranchID {
			continue
		}
		if filter.From != "" && invoice.InvoiceDate < filter.From {
			continue
		}
		if filter.To != "" && invoice.InvoiceDate > filter.To {
			continue
		}
		if filter.Status != "" && invoice.PaymentStatus != filter.Status {
			continue
		}
		result = append(result, cloneInvoice(invoice))
	}
	slices.SortFunc(result, func(a, b domain.PurchaseInvoice) int {
		if a.InvoiceDate != b.InvoiceDate {
			return cmpString(b.InvoiceDate, a.InvoiceDate)
		}
		return cmpString(b.InvoiceNumber, a.InvoiceNumber)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DeletePurchaseInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoicesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.invoicesByID, id)
	return nil
}

func (s *Store) ListOutstandingInvoices(_ context.Context, supplierID string) ([]domain.OutstandingInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.OutstandingInvoice, 0, 16)
	for _, invoice := range s.invoicesByID {
		if invoice.SupplierID != supplierID || !invoice.PaymentStatus.Outstanding() || !invoice.PendingAmount.IsPositive() {
			continue
		}
		result = append(result, domain.OutstandingInvoice{
			ID:            invoice.ID,
			SupplierID:    invoice.SupplierID,
			InvoiceNumber: invoice.InvoiceNumber,
			InvoiceDate:   invoice.InvoiceDate,
			TotalAmount:   invoice.TotalAmount,
			PaidAmount:    invoice.PaidAmount,
			PendingAmount: invoice.PendingAmount,
			PaymentStatus: invoice.PaymentStatus,
		})
	}
	slices.SortFunc(result, func(a, b domain.OutstandingInvoice) int {
		if a.InvoiceDate != b.InvoiceDate {
			return cmpString(a.InvoiceDate, b.InvoiceDate)
		}
		return cmpString(a.InvoiceNumber, b.InvoiceNumber)
	})
	return result, nil
}

// RecordBulkPayment works on copies of the referenced invoices and swaps
// them in only after every allocation has been applied.
func (s *Store) RecordBulkPayment(_ context.Context, payment domain.SupplierPayment, ledger *domain.BankTransaction) (*domain.SupplierPayment, error) {
	if payment.SupplierID == "" || len(payment.Invoices) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[payment.SupplierID]; !ok {
		return nil, store.ErrNotFound
	}
	if payment.ID == "" {
		payment.ID = xid.New("spay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	staged := make(map[string]domain.PurchaseInvoice, len(payment.Invoices))
	for _, row := range payment.Invoices {
		invoice, ok := staged[row.PurchaseEntryID]
		if !ok {
			invoice, ok = s.invoicesByID[row.PurchaseEntryID]
			if !ok {
				return nil, fmt.Errorf("%w: invoice %s no longer exists", store.ErrStalePending, row.PurchaseEntryID)
			}
			invoice = cloneInvoice(invoice)
		}
		if err := store.ApplyAllocation(&invoice, payment, row.AmountAllocated); err != nil {
			return nil, err
		}
		staged[invoice.ID] = invoice
	}

	var entries []domain.BankTransaction
	if ledger != nil {
		entries = append(entries, *ledger)
	}
	if err := s.postLedger(entries, payment.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for id, invoice := range staged {
		invoice.UpdatedAt = &now
		s.invoicesByID[id] = invoice
	}
	payment.Invoices = slices.Clone(payment.Invoices)
	s.paymentsByID[payment.ID] = payment
	recorded := payment
	return &recorded, nil
}

func (s *Store) ListSupplierPayments(_ context.Context, supplierID string, limit int) ([]domain.SupplierPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.SupplierPayment, 0, 16)
	for _, payment := range s.paymentsByID {
		if supplierID != "" && payment.SupplierID != supplierID {
			continue
		}
		result = append(result, payment)
	}
	slices.SortFunc(result, func(a, b domain.SupplierPayment) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RolePurchaser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneInvoice(src domain.PurchaseInvoice) domain.PurchaseInvoice {
	dup := src
	dup.Items = slices.Clone(src.Items)
	if src.UpdatedAt != nil {
		at := *src.UpdatedAt
		dup.UpdatedAt = &at
	}
	return dup
}

var _ store.Repository = (*Store)(nil)
