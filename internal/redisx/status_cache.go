package redisx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

type CachedStatus struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// putIfNewer writes the entry unless the cached one carries a later ts.
// KEYS[1] key; ARGV ts, status, updated_at, ttl in ms.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'status', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// StatusCache mirrors the latest status of every order so diners can poll
// without touching the order store. It is fed by the event stream, which
// may deliver events of one order out of order; an entry only ever moves
// forward in updated_at.
type StatusCache struct {
	Redis  *redis.Client
	Logger *slog.Logger
	Now    func() time.Time
}

func (c *StatusCache) Notify(ctx context.Context, ev orders.Event) {
	at := time.Now().UTC()
	if c.Now != nil {
		at = c.Now()
	}
	if ev.UpdatedAt != nil {
		at = *ev.UpdatedAt
	}
	applied, err := c.Put(ctx, CachedStatus{OrderID: ev.Key(), Status: ev.CurrentStatus(), UpdatedAt: at})
	if c.Logger == nil {
		return
	}
	switch {
	case err != nil:
		c.Logger.Warn("status cache write failed", "order_id", ev.Key(), "error", err)
	case !applied:
		c.Logger.Debug("status cache kept newer entry", "order_id", ev.Key(), "status", string(ev.CurrentStatus()))
	}
}

// Put stores s unless the cache already holds a later update for the same
// order. It reports whether s was written.
func (c *StatusCache) Put(ctx context.Context, s CachedStatus) (bool, error) {
	key := fmt.Sprintf(KeyOrderStatus, s.OrderID)
	n, err := putIfNewer.Run(ctx, c.Redis, []string{key},
		s.UpdatedAt.UnixMicro(),
		string(s.Status),
		s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		TTLStatusCache.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get returns ok=false on a cache miss.
func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	m, err := c.Redis.HGetAll(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil {
		return CachedStatus{}, false, err
	}
	if len(m) == 0 {
		return CachedStatus{}, false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, m["updated_at"])
	if err != nil {
		return CachedStatus{}, false, fmt.Errorf("cached status %s: %w", orderID, err)
	}
	st, ok := orders.ParseStatus(m["status"])
	if !ok {
		return CachedStatus{}, false, fmt.Errorf("cached status %s: unknown status %q", orderID, m["status"])
	}
	return CachedStatus{OrderID: orderID, Status: st, UpdatedAt: at}, true, nil
}
