// Package relay feeds order events from Kafka into the local notification
// hub so every API instance pushes the same events to its merchant sessions.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-kitchen-orders/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Relay struct {
	Target orders.Notifier
	// Redis is optional; with it, redelivered envelopes are skipped.
	Redis       *redis.Client
	ServiceName string
	Logger      *slog.Logger
}

// Handle is installed as the consumer handler. Undecodable messages are
// logged and committed so they cannot block the partition.
func (r *Relay) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		r.Logger.Warn("relay: skipping malformed envelope", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != orders.EventNewOrder && env.EventType != orders.EventStatusChanged {
		return nil
	}

	if r.Redis != nil && env.EventID != "" {
		key := fmt.Sprintf(redisx.KeyDedup, r.ServiceName, env.EventID)
		fresh, err := redisx.Claim(ctx, r.Redis, key, redisx.TTLDedup)
		if err != nil {
			r.Logger.Warn("relay: dedup check failed", "event_id", env.EventID, "error", err)
		} else if !fresh {
			return nil
		}
	}

	ev, err := kafkax.UnwrapPayload[orders.Event](env.Payload)
	if err != nil {
		r.Logger.Warn("relay: skipping malformed payload", "event_id", env.EventID, "error", err)
		return nil
	}
	r.Target.Notify(ctx, ev)
	return nil
}
