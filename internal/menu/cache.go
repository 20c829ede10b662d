package menu

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedCatalog keeps the available-dish list in Redis in front of a slower
// catalog. Single-dish lookups always go to the source so availability and
// cooking notes are current.
type CachedCatalog struct {
	Source orders.Catalog
	Redis  *redis.Client
	Logger *slog.Logger

	group singleflight.Group
}

func (c *CachedCatalog) Dish(ctx context.Context, id int64) (orders.Dish, error) {
	return c.Source.Dish(ctx, id)
}

func (c *CachedCatalog) Available(ctx context.Context) ([]orders.Dish, error) {
	if ds, ok := c.cached(ctx); ok {
		return ds, nil
	}
	// one loader per miss; concurrent callers share its result
	v, err, _ := c.group.Do(redisx.KeyMenuAvailable, func() (any, error) {
		if ds, ok := c.cached(ctx); ok {
			return ds, nil
		}
		ds, err := c.Source.Available(ctx)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(ds); err == nil {
			if err := c.Redis.Set(ctx, redisx.KeyMenuAvailable, b, redisx.TTLMenu).Err(); err != nil {
				c.warn("menu cache write failed", err)
			}
		}
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]orders.Dish), nil
}

// Invalidate drops the cached list after a menu change.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	return c.Redis.Del(ctx, redisx.KeyMenuAvailable).Err()
}

func (c *CachedCatalog) cached(ctx context.Context) ([]orders.Dish, bool) {
	b, err := c.Redis.Get(ctx, redisx.KeyMenuAvailable).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("menu cache read failed", err)
		}
		return nil, false
	}
	var ds []orders.Dish
	if err := json.Unmarshal(b, &ds); err != nil {
		c.warn("menu cache decode failed", err)
		return nil, false
	}
	return ds, true
}

func (c *CachedCatalog) warn(msg string, err error) {
	if c.Logger != nil {
		c.Logger.Warn(msg, "error", err)
	}
}
