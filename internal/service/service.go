package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectthinkx/ds-sub001/internal/cache"
	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/logger"
	"github.com/projectthinkx/ds-sub001/internal/money"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/tasks"
	"github.com/projectthinkx/ds-sub001/internal/xid"
)

var ErrForbidden = errors.New("role not allowed")

// CommitError reports that the record store failed while applying an
// already validated change. It is not retried automatically.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Cache           cache.LookupCache
	Enqueuer        tasks.Enqueuer
	CacheTTL        time.Duration
	DefaultBranchID string
}

type Service struct {
	repo            store.Repository
	cache           cache.LookupCache
	enqueuer        tasks.Enqueuer
	cacheTTL        time.Duration
	defaultBranchID string
	log             zerolog.Logger
	now             func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopLookupCache{}
	}
	if opts.Enqueuer == nil {
		opts.Enqueuer = tasks.NoopEnqueuer{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.DefaultBranchID == "" {
		opts.DefaultBranchID = "main-branch"
	}

	return &Service{
		repo:            repo,
		cache:           opts.Cache,
		enqueuer:        opts.Enqueuer,
		cacheTTL:        opts.CacheTTL,
		defaultBranchID: opts.DefaultBranchID,
		log:             logger.WithComponent("service"),
		now:             time.Now,
	}
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidRecord
	}

	saved, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:        xid.New("sup"),
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		GSTIN:     strings.ToUpper(strings.TrimSpace(req.GSTIN)),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "", "supplier_create", "supplier", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) CreateItemMaster(ctx context.Context, req domain.ItemMasterCreateRequest) (domain.ItemMaster, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.ItemMaster{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.ItemMaster{}, store.ErrInvalidRecord
	}

	saved, err := s.repo.CreateItemMaster(ctx, domain.ItemMaster{
		ID:                    xid.New("im"),
		Name:                  req.Name,
		ItemTypeID:            strings.TrimSpace(req.ItemTypeID),
		Category:              strings.TrimSpace(req.Category),
		Subcategory:           strings.TrimSpace(req.Subcategory),
		Manufacturer:          strings.TrimSpace(req.Manufacturer),
		Unit:                  strings.TrimSpace(req.Unit),
		GSTPercentage:         money.NonNegative(req.GSTPercentage),
		MRP:                   money.NonNegative(req.MRP),
		PurchasePrice:         money.NonNegative(req.PurchasePrice),
		ExpiryTrackingEnabled: req.ExpiryTrackingEnabled,
		CreatedAt:             s.now().UTC(),
	})
	if err != nil {
		return domain.ItemMaster{}, err
	}

	s.logAudit(ctx, "", "item_master_create", "item_master", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListItemMaster(ctx context.Context, search string, limit int) ([]domain.ItemMaster, error) {
	return s.repo.ListItemMaster(ctx, search, limit)
}

// lookupItemMaster reads through the cache. Cache failures fall back to the
// store.
func (s *Service) lookupItemMaster(ctx context.Context, id string) (*domain.ItemMaster, error) {
	if id == "" {
		return nil, nil
	}
	if cached, ok, err := s.cache.GetItemMaster(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("item_master_id", id).Msg("item master cache read failed")
	} else if ok {
		return cached, nil
	}

	item, err := s.repo.GetItemMaster(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetItemMaster(ctx, item, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("item_master_id", id).Msg("item master cache write failed")
	}
	return item, nil
}

func (s *Service) CreateBankAccount(ctx context.Context, req domain.BankAccountCreateRequest) (domain.BankAccount, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.BankAccount{}, err
	}

	req.BankName = strings.TrimSpace(req.BankName)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	if req.BankName == "" || req.AccountNumber == "" {
		return domain.BankAccount{}, store.ErrInvalidRecord
	}

	saved, err := s.repo.CreateBankAccount(ctx, domain.BankAccount{
		ID:             xid.New("bank"),
		BankName:       req.BankName,
		AccountName:    strings.TrimSpace(req.AccountName),
		AccountNumber:  req.AccountNumber,
		IFSC:           strings.ToUpper(strings.TrimSpace(req.IFSC)),
		CurrentBalance: req.OpeningBalance,
		Active:         true,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return domain.BankAccount{}, err
	}

	s.logAudit(ctx, "", "bank_account_create", "bank_account", saved.ID, fmt.Sprintf("bank=%s", saved.BankName))
	return *saved, nil
}

func (s *Service) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	return s.repo.ListBankAccounts(ctx)
}

func (s *Service) ListBankTransactions(ctx context.Context, bankAccountID string, limit int) ([]domain.BankTransaction, error) {
	return s.repo.ListBankTransactions(ctx, strings.TrimSpace(bankAccountID), limit)
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, date string, limit int) ([]domain.AuditLog, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidRecord
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, branchID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

// supplierChanged drops the cached balance and schedules a recompute.
func (s *Service) supplierChanged(ctx context.Context, supplierID string) {
	if supplierID == "" {
		return
	}
	if err := s.cache.InvalidateSupplierBalance(ctx, supplierID); err != nil {
		s.log.Warn().Err(err).Str("supplier_id", supplierID).Msg("balance cache invalidate failed")
	}
	if err := s.enqueuer.EnqueueSupplierBalanceRefresh(ctx, supplierID); err != nil {
		s.log.Warn().Err(err).Str("supplier_id", supplierID).Msg("balance refresh enqueue failed")
	}
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}

// commitFailure keeps store sentinels visible to callers and wraps anything
// else as a CommitError.
func commitFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{store.ErrNotFound, store.ErrInvalidRecord, store.ErrDuplicate, store.ErrStalePending} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &CommitError{Op: op, Err: err}
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
