package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// EventPublisher writes every order event to the event topic wrapped in an
// Envelope. It implements orders.Notifier.
type EventPublisher struct {
	Producer *Producer
	Service  string
}

func (p *EventPublisher) Notify(ctx context.Context, ev orders.Event) {
	env, err := NewEnvelope(ctx, p.Service, ev)
	if err != nil {
		p.Producer.logger.Error("build event envelope", "order_id", ev.Key(), "error", err)
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.Producer.logger.Error("encode event envelope", "order_id", ev.Key(), "error", err)
		return
	}

	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "x-event-type", Value: []byte(ev.Type)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(EventVersion))},
	}}
	otel.GetTextMapPropagator().Inject(ctx, NewMessageCarrier(&msg))

	p.Producer.Publish(orders.PartitionKey(ev.Key()), value, msg.Headers...)
}
