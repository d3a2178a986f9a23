// Package mongo keeps the payables ledger in MongoDB. Documents reuse the
// domain json field names; money is stored as Decimal128.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/xid"
)

const (
	collSuppliers        = "suppliers"
	collItemMaster       = "item_master"
	collBankAccounts     = "bank_accounts"
	collBankTransactions = "bank_transactions"
	collPurchaseEntries  = "purchase_entries"
	collSupplierPayments = "supplier_payments"
	collAuditLogs        = "audit_logs"
	collUsers            = "users"
)

var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(ctx context.Context, uri string, dbName string) (*Store, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetRegistry(reg))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Migrate creates the indexes the store relies on for lookups and
// uniqueness. Creating an existing index is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	uniqueFold := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)}
	}

	plan := map[string][]mongo.IndexModel{
		collSuppliers:        {unique(bson.D{{Key: "id", Value: 1}})},
		collItemMaster:       {unique(bson.D{{Key: "id", Value: 1}}), uniqueFold(bson.D{{Key: "name", Value: 1}})},
		collBankAccounts:     {unique(bson.D{{Key: "id", Value: 1}}), unique(bson.D{{Key: "account_number", Value: 1}})},
		collBankTransactions: {unique(bson.D{{Key: "id", Value: 1}}), {Keys: bson.D{{Key: "bank_account_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		collPurchaseEntries: {
			unique(bson.D{{Key: "id", Value: 1}}),
			uniqueFold(bson.D{{Key: "supplier_id", Value: 1}, {Key: "invoice_number", Value: 1}}),
			{Keys: bson.D{{Key: "supplier_id", Value: 1}, {Key: "payment_status", Value: 1}, {Key: "invoice_date", Value: 1}}},
		},
		collSupplierPayments: {unique(bson.D{{Key: "id", Value: 1}}), {Keys: bson.D{{Key: "supplier_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		collAuditLogs:        {{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		collUsers:            {unique(bson.D{{Key: "username", Value: 1}})},
	}
	for coll, models := range plan {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
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
	if _, err := s.db.Collection(collSuppliers).InsertOne(ctx, supplier); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	if err := findOne(ctx, s.db.Collection(collSuppliers), bson.M{"id": id}, &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetCollation(caseInsensitive)
	suppliers := make([]domain.Supplier, 0, 32)
	if err := findAll(ctx, s.db.Collection(collSuppliers), bson.M{}, opts, &suppliers); err != nil {
		return nil, err
	}
	return suppliers, nil
}

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

	coll := s.db.Collection(collItemMaster)
	if _, err := coll.InsertOne(ctx, item); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		var existing domain.ItemMaster
		err := coll.FindOne(ctx, bson.M{"name": item.Name}, options.FindOne().SetCollation(caseInsensitive)).Decode(&existing)
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &item, nil
}

func (s *Store) GetItemMaster(ctx context.Context, id string) (*domain.ItemMaster, error) {
	var item domain.ItemMaster
	if err := findOne(ctx, s.db.Collection(collItemMaster), bson.M{"id": id}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemMasters(ctx context.Context, ids []string) (map[string]domain.ItemMaster, error) {
	result := make(map[string]domain.ItemMaster, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var items []domain.ItemMaster
	if err := findAll(ctx, s.db.Collection(collItemMaster), bson.M{"id": bson.M{"$in": ids}}, nil, &items); err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

func (s *Store) ListItemMaster(ctx context.Context, search string, limit int) ([]domain.ItemMaster, error) {
	if limit < 1 {
		limit = 200
	}
	filter := bson.M{}
	if search = strings.TrimSpace(search); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetLimit(int64(limit))
	items := make([]domain.ItemMaster, 0, limit)
	if err := findAll(ctx, s.db.Collection(collItemMaster), filter, opts, &items); err != nil {
		return nil, err
	}
	return items, nil
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
	if _, err := s.db.Collection(collBankAccounts).InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &account, nil
}

func (s *Store) GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	var account domain.BankAccount
	if err := findOne(ctx, s.db.Collection(collBankAccounts), bson.M{"id": id}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	opts := options.Find().SetSort(bson.D{{Key: "bank_name", Value: 1}, {Key: "account_number", Value: 1}})
	accounts := make([]domain.BankAccount, 0, 8)
	if err := findAll(ctx, s.db.Collection(collBankAccounts), bson.M{}, opts, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) ListBankTransactions(ctx context.Context, bankAccountID string, limit int) ([]domain.BankTransaction, error) {
	if limit < 1 {
		limit = 200
	}
	filter := bson.M{}
	if bankAccountID != "" {
		filter["bank_account_id"] = bankAccountID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	entries := make([]domain.BankTransaction, 0, limit)
	if err := findAll(ctx, s.db.Collection(collBankTransactions), filter, opts, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// postLedger must run inside a transaction: it moves the bank balance and
// inserts the entry as two writes.
func (s *Store) postLedger(ctx context.Context, entries []domain.BankTransaction, referenceID string) error {
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
			delta, err := toDecimal128(store.BalanceDelta(entry))
			if err != nil {
				return err
			}
			var account domain.BankAccount
			err = s.db.Collection(collBankAccounts).FindOneAndUpdate(ctx,
				bson.M{"id": entry.BankAccountID},
				bson.M{"$inc": bson.M{"current_balance": delta}},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).Decode(&account)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					return fmt.Errorf("%w: bank account %s", store.ErrInvalidRecord, entry.BankAccountID)
				}
				return err
			}
			entry.BankName = account.BankName
		}
		if _, err := s.db.Collection(collBankTransactions).InsertOne(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
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

	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		var supplier domain.Supplier
		if err := findOne(sc, s.db.Collection(collSuppliers), bson.M{"id": invoice.SupplierID}, &supplier); err != nil {
			return err
		}
		if _, err := s.db.Collection(collPurchaseEntries).InsertOne(sc, invoice); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return store.ErrDuplicate
			}
			return err
		}
		return s.postLedger(sc, ledger, invoice.ID)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) UpdatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice, ledger []domain.BankTransaction) (*domain.PurchaseInvoice, error) {
	if invoice.ID == "" || invoice.SupplierID == "" || invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		coll := s.db.Collection(collPurchaseEntries)
		var current domain.PurchaseInvoice
		if err := findOne(sc, coll, bson.M{"id": invoice.ID}, &current); err != nil {
			return err
		}
		invoice.CreatedBy = current.CreatedBy
		invoice.CreatedAt = current.CreatedAt
		now := time.Now().UTC()
		invoice.UpdatedAt = &now

		if _, err := coll.ReplaceOne(sc, bson.M{"id": invoice.ID}, invoice); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return store.ErrDuplicate
			}
			return err
		}
		return s.postLedger(sc, ledger, invoice.ID)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) GetPurchaseInvoice(ctx context.Context, id string) (*domain.PurchaseInvoice, error) {
	var invoice domain.PurchaseInvoice
	if err := findOne(ctx, s.db.Collection(collPurchaseEntries), bson.M{"id": id}, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListPurchaseInvoices(ctx context.Context, filter domain.PurchaseInvoiceFilter) ([]domain.PurchaseInvoice, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	query := bson.M{}
	if filter.SupplierID != "" {
		query["supplier_id"] = filter.SupplierID
	}
	if filter.BranchID != "" {
		query["branch_id"] = filter.BranchID
	}
	if filter.Status != "" {
		query["payment_status"] = filter.Status
	}
	dateRange := bson.M{}
	if filter.From != "" {
		dateRange["$gte"] = filter.From
	}
	if filter.To != "" {
		dateRange["$lte"] = filter.To
	}
	if len(dateRange) > 0 {
		query["invoice_date"] = dateRange
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "invoice_date", Value: -1}, {Key: "invoice_number", Value: -1}}).
		SetLimit(int64(limit))
	invoices := make([]domain.PurchaseInvoice, 0, 64)
	if err := findAll(ctx, s.db.Collection(collPurchaseEntries), query, opts, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) DeletePurchaseInvoice(ctx context.Context, id string) error {
	res, err := s.db.Collection(collPurchaseEntries).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOutstandingInvoices(ctx context.Context, supplierID string) ([]domain.OutstandingInvoice, error) {
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return nil, err
	}
	query := bson.M{
		"supplier_id":    supplierID,
		"payment_status": bson.M{"$in": []domain.PaymentStatus{domain.PaymentUnpaid, domain.PaymentPartial}},
		"pending_amount": bson.M{"$gt": zero},
	}
	opts := options.Find().SetSort(bson.D{{Key: "invoice_date", Value: 1}, {Key: "invoice_number", Value: 1}})

	var invoices []domain.PurchaseInvoice
	if err := findAll(ctx, s.db.Collection(collPurchaseEntries), query, opts, &invoices); err != nil {
		return nil, err
	}
	result := make([]domain.OutstandingInvoice, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, domain.OutstandingInvoice{
			ID:            inv.ID,
			SupplierID:    inv.SupplierID,
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   inv.InvoiceDate,
			TotalAmount:   inv.TotalAmount,
			PaidAmount:    inv.PaidAmount,
			PendingAmount: inv.PendingAmount,
			PaymentStatus: inv.PaymentStatus,
		})
	}
	return result, nil
}

// RecordBulkPayment re-reads every invoice inside one transaction and
// aborts the whole batch when any allocation no longer fits.
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

	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		coll := s.db.Collection(collPurchaseEntries)
		for _, row := range payment.Invoices {
			var invoice domain.PurchaseInvoice
			err := coll.FindOne(sc, bson.M{"id": row.PurchaseEntryID}).Decode(&invoice)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					return fmt.Errorf("%w: invoice %s no longer exists", store.ErrStalePending, row.PurchaseEntryID)
				}
				return err
			}
			if err := store.ApplyAllocation(&invoice, payment, row.AmountAllocated); err != nil {
				return err
			}
			_, err = coll.UpdateOne(sc, bson.M{"id": invoice.ID}, bson.M{"$set": bson.M{
				"paid_amount":         invoice.PaidAmount,
				"pending_amount":      invoice.PendingAmount,
				"payment_status":      invoice.PaymentStatus,
				"transaction_details": invoice.TransactionDetails,
				"updated_at":          time.Now().UTC(),
			}})
			if err != nil {
				return err
			}
		}

		if _, err := s.db.Collection(collSupplierPayments).InsertOne(sc, payment); err != nil {
			return err
		}
		if ledger != nil {
			return s.postLedger(sc, []domain.BankTransaction{*ledger}, payment.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) ListSupplierPayments(ctx context.Context, supplierID string, limit int) ([]domain.SupplierPayment, error) {
	if limit < 1 {
		limit = 100
	}
	filter := bson.M{}
	if supplierID != "" {
		filter["supplier_id"] = supplierID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	payments := make([]domain.SupplierPayment, 0, limit)
	if err := findAll(ctx, s.db.Collection(collSupplierPayments), filter, opts, &payments); err != nil {
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
	_, err := s.db.Collection(collAuditLogs).InsertOne(ctx, entry)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	filter := bson.M{"created_at": bson.M{"$gte": from, "$lt": to}}
	if branchID != "" {
		filter["branch_id"] = branchID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	logs := make([]domain.AuditLog, 0, limit)
	if err := findAll(ctx, s.db.Collection(collAuditLogs), filter, opts, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// userDocument carries bson tags because UserAccount is never serialized to
// clients and has no json names.
type userDocument struct {
	Username  string    `bson:"username"`
	Password  string    `bson:"password"`
	Role      string    `bson:"role"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RolePurchaser
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	_, err := s.db.Collection(collUsers).InsertOne(ctx, userDocument{
		Username:  username,
		Password:  user.Password,
		Role:      user.Role,
		Active:    true,
		CreatedAt: user.CreatedAt,
		UpdatedAt: now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var docs []userDocument
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	if err := findAll(ctx, s.db.Collection(collUsers), bson.M{}, opts, &docs); err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(docs))
	for _, doc := range docs {
		users = append(users, domain.UserAccount{
			Username:  doc.Username,
			Password:  doc.Password,
			Role:      doc.Role,
			Active:    doc.Active,
			CreatedAt: doc.CreatedAt.UTC(),
		})
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	res, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"password": password, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func findOne(ctx context.Context, coll *mongo.Collection, filter any, out any) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func findAll(ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions, out any) error {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	cursor, err := coll.Find(ctx, filter, findOpts...)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

var _ store.Repository = (*Store)(nil)
