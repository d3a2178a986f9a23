package cache

import (
	"context"
	"time"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

// LookupCache fronts the item-master lookup made on every item selection and
// the per-supplier outstanding balance.
type LookupCache interface {
	GetItemMaster(ctx context.Context, id string) (*domain.ItemMaster, bool, error)
	SetItemMaster(ctx context.Context, item *domain.ItemMaster, ttl time.Duration) error
	GetSupplierBalance(ctx context.Context, supplierID string) (*domain.SupplierBalance, bool, error)
	SetSupplierBalance(ctx context.Context, balance *domain.SupplierBalance, ttl time.Duration) error
	InvalidateSupplierBalance(ctx context.Context, supplierID string) error
}

type NoopLookupCache struct{}

func (NoopLookupCache) GetItemMaster(_ context.Context, _ string) (*domain.ItemMaster, bool, error) {
	return nil, false, nil
}

func (NoopLookupCache) SetItemMaster(_ context.Context, _ *domain.ItemMaster, _ time.Duration) error {
	return nil
}

func (NoopLookupCache) GetSupplierBalance(_ context.Context, _ string) (*domain.SupplierBalance, bool, error) {
	return nil, false, nil
}

func (NoopLookupCache) SetSupplierBalance(_ context.Context, _ *domain.SupplierBalance, _ time.Duration) error {
	return nil
}

func (NoopLookupCache) InvalidateSupplierBalance(_ context.Context, _ string) error {
	return nil
}

func itemMasterKey(id string) string {
	return "payables:item_master:" + id
}

func supplierBalanceKey(supplierID string) string {
	return "payables:supplier_balance:" + supplierID
}
