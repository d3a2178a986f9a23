package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

type RedisLookupCache struct {
	client *redis.Client
}

func NewRedisLookupCache(addr string, password string, db int) *RedisLookupCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisLookupCache{client: client}
}

// NewRedisLookupCacheFromClient shares an existing connection pool.
func NewRedisLookupCacheFromClient(client *redis.Client) *RedisLookupCache {
	return &RedisLookupCache{client: client}
}

func (c *RedisLookupCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLookupCache) Close() error {
	return c.client.Close()
}

func (c *RedisLookupCache) Client() *redis.Client {
	return c.client
}

func (c *RedisLookupCache) GetItemMaster(ctx context.Context, id string) (*domain.ItemMaster, bool, error) {
	var item domain.ItemMaster
	ok, err := c.get(ctx, itemMasterKey(id), &item)
	if !ok || err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (c *RedisLookupCache) SetItemMaster(ctx context.Context, item *domain.ItemMaster, ttl time.Duration) error {
	if item == nil {
		return nil
	}
	return c.set(ctx, itemMasterKey(item.ID), item, ttl)
}

func (c *RedisLookupCache) GetSupplierBalance(ctx context.Context, supplierID string) (*domain.SupplierBalance, bool, error) {
	var balance domain.SupplierBalance
	ok, err := c.get(ctx, supplierBalanceKey(supplierID), &balance)
	if !ok || err != nil {
		return nil, false, err
	}
	return &balance, true, nil
}

func (c *RedisLookupCache) SetSupplierBalance(ctx context.Context, balance *domain.SupplierBalance, ttl time.Duration) error {
	if balance == nil {
		return nil
	}
	return c.set(ctx, supplierBalanceKey(balance.SupplierID), balance, ttl)
}

func (c *RedisLookupCache) InvalidateSupplierBalance(ctx context.Context, supplierID string) error {
	return c.client.Del(ctx, supplierBalanceKey(supplierID)).Err()
}

func (c *RedisLookupCache) get(ctx context.Context, key string, out any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisLookupCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
