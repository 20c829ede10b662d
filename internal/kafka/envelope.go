package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const EventVersion = 1

// NewEnvelope wraps ev for the event topic. The trace id is copied from ctx
// when a span is active.
func NewEnvelope(ctx context.Context, producer string, ev orders.Event) (orders.Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return orders.Envelope{}, fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: ev.Key(),
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env, nil
}

// DecodeEnvelope rejects envelopes from a newer schema than this build knows.
func DecodeEnvelope(b []byte) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventVersion > EventVersion {
		return env, fmt.Errorf("unsupported event version %d", env.EventVersion)
	}
	return env, nil
}

func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
