package orders

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventNewOrder      EventType = "new_order"
	EventStatusChanged EventType = "status_changed"
)

// OrderSummary is the slice of an order the merchant board needs to render
// a new ticket.
type OrderSummary struct {
	ID          string `json:"id"`
	UserName    string `json:"user_name"`
	TotalAmount Money  `json:"total_amount"`
	ItemsCount  int    `json:"items_count"`
}

// Event is pushed to merchant sessions. It is never stored.
// status_changed frames for one order may arrive out of order; clients keep
// the one with the latest updated_at.
type Event struct {
	Type      EventType     `json:"type"`
	Order     *OrderSummary `json:"order,omitempty"`
	OrderID   string        `json:"order_id,omitempty"`
	Status    Status        `json:"status,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

func NewOrderEvent(o Order) Event {
	return Event{
		Type: EventNewOrder,
		Order: &OrderSummary{
			ID:          o.ID,
			UserName:    o.UserName,
			TotalAmount: o.TotalAmount,
			ItemsCount:  len(o.Items),
		},
	}
}

func StatusChangedEvent(o Order) Event {
	at := o.UpdatedAt
	return Event{
		Type:      EventStatusChanged,
		OrderID:   o.ID,
		Status:    o.Status,
		UpdatedAt: &at,
	}
}

// Key is the order id the event is about.
func (e Event) Key() string {
	if e.Order != nil {
		return e.Order.ID
	}
	return e.OrderID
}

// CurrentStatus is the status the order is in after the event.
func (e Event) CurrentStatus() Status {
	if e.Type == EventNewOrder {
		return StatusPending
	}
	return e.Status
}

// Envelope wraps an Event for the durable event stream.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Notifier receives every event the service emits. Implementations must be
// best-effort: they cannot fail the order operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Notifiers fans one event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }
