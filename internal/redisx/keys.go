package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> hash {status, updated_at, ts}
	// where ts is updated_at in unix microseconds.
	KeyOrderStatus = "order_status:%s"

	// Available dishes: menu:available -> JSON array of dishes
	KeyMenuAvailable = "menu:available"

	// Dedup relayed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLMenu        = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
)
