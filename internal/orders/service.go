package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxCASRetries bounds how often a transition is re-evaluated after losing a
// race on the same order.
const maxCASRetries = 3

// Limits keep client input inside what the order tables can hold
// (order_items.quantity INT, orders.total_amount NUMERIC(12,2)).
const MaxItemQuantity = 999

var maxOrderTotal = MustMoney("9999999999.99")

type TransitionRecorder interface {
	RecordTransition(action Action, result string)
}

// Service owns order creation and the lifecycle state machine. Every
// successful mutation is followed by exactly one event to Notifier.
type Service struct {
	Store    Store
	Catalog  Catalog
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  TransitionRecorder

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() (string, error)
}

func NewService(store Store, catalog Catalog, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Catalog: catalog, Notifier: notifier, Logger: logger}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) newID() (string, error) {
	if s.NewID != nil {
		return s.NewID()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Service) notify(ctx context.Context, ev Event) {
	if s.Notifier == nil {
		return
	}
	// delivery must outlive a cancelled request but not hang on it
	s.Notifier.Notify(context.WithoutCancel(ctx), ev)
}

func (s *Service) record(a Action, err error) {
	if s.Metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	s.Metrics.RecordTransition(a, result)
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (Order, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Order{}, Validationf("missing required field: user_id")
	}
	if strings.TrimSpace(in.UserName) == "" {
		return Order{}, Validationf("missing required field: user_name")
	}
	if len(in.Items) == 0 {
		return Order{}, Validationf("items must be a non-empty list")
	}

	items := make([]OrderItem, 0, len(in.Items))
	var total Money
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return Order{}, Validationf("items[%d]: quantity must be at least 1", i)
		}
		if it.Quantity > MaxItemQuantity {
			return Order{}, Validationf("items[%d]: quantity must be at most %d", i, MaxItemQuantity)
		}
		dish, err := s.Catalog.Dish(ctx, it.DishID)
		if errors.Is(err, ErrDishNotFound) {
			return Order{}, InvalidItemf("items[%d]: dish %d does not exist", i, it.DishID)
		}
		if err != nil {
			return Order{}, Storage("load dish", err)
		}
		if !dish.IsAvailable {
			return Order{}, InvalidItemf("items[%d]: dish %d is not available", i, it.DishID)
		}
		if dish.Price.IsNegative() {
			return Order{}, InvalidItemf("items[%d]: dish %d has a negative price", i, it.DishID)
		}
		item := OrderItem{
			DishID:   dish.ID,
			DishName: dish.Name,
			Quantity: it.Quantity,
			Price:    dish.Price,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}
	if total.GreaterThan(maxOrderTotal.Decimal) {
		return Order{}, Validationf("order total %s exceeds the maximum of %s", total, maxOrderTotal)
	}

	id, err := s.newID()
	if err != nil {
		return Order{}, Storage("generate order id", err)
	}
	now := s.now()
	order := Order{
		ID:          id,
		UserID:      in.UserID,
		UserName:    in.UserName,
		Items:       items,
		TotalAmount: total,
		Status:      StatusPending,
		Note:        in.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, err := s.Store.Create(ctx, order)
	if err != nil {
		return Order{}, Storage("create order", err)
	}

	s.notify(ctx, NewOrderEvent(stored))
	s.Logger.Info("order created",
		"order_id", stored.ID,
		"user_id", stored.UserID,
		"total_amount", stored.TotalAmount.String(),
		"items", len(stored.Items),
	)
	return stored, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	o, err := s.Store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Order{}, NotFound("order", err)
	}
	if err != nil {
		return Order{}, Storage("get order", err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, Validationf("unknown status %q", f.Status)
	}
	out, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, Storage("list orders", err)
	}
	return out, nil
}

// Detail returns the order with each line enriched by the dish's cooking
// notes. Dishes that left the catalog are returned without notes.
func (s *Service) Detail(ctx context.Context, id string) (OrderDetail, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	d := OrderDetail{Order: o, Items: make([]DetailItem, 0, len(o.Items))}
	for _, it := range o.Items {
		di := DetailItem{OrderItem: it}
		dish, err := s.Catalog.Dish(ctx, it.DishID)
		switch {
		case err == nil:
			di.CookingInstructions = dish.CookingInstructions
			di.Description = dish.Description
		case !errors.Is(err, ErrDishNotFound):
			s.Logger.Warn("dish lookup failed", "order_id", id, "dish_id", it.DishID, "error", err)
		}
		d.Items = append(d.Items, di)
	}
	return d, nil
}

func (s *Service) Accept(ctx context.Context, id string) (Order, error) {
	return s.Apply(ctx, id, ActionAccept)
}

func (s *Service) Start(ctx context.Context, id string) (Order, error) {
	return s.Apply(ctx, id, ActionStart)
}

func (s *Service) Complete(ctx context.Context, id string) (Order, error) {
	return s.Apply(ctx, id, ActionComplete)
}

func (s *Service) Cancel(ctx context.Context, id string) (Order, error) {
	return s.Apply(ctx, id, ActionCancel)
}

// Apply moves the order along the edge named by a. The check and the write
// are joined by a compare-and-set on the status the check observed, so two
// concurrent callers can never both leave the same state.
func (s *Service) Apply(ctx context.Context, id string, a Action) (out Order, err error) {
	defer func() { s.record(a, err) }()

	current, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	for attempt := 0; ; attempt++ {
		next, err := a.Next(current.Status)
		if err != nil {
			return Order{}, err
		}
		updated, err := s.Store.CompareAndSetStatus(ctx, id, current.Status, next, s.now())
		switch {
		case err == nil:
			s.notify(ctx, StatusChangedEvent(updated))
			s.Logger.Info("order status changed",
				"order_id", id, "action", string(a), "from", string(current.Status), "to", string(next))
			return updated, nil
		case errors.Is(err, ErrStatusConflict) && attempt < maxCASRetries:
			current = updated
		case errors.Is(err, ErrStatusConflict):
			return Order{}, InvalidTransition("order is being updated concurrently", updated.Status)
		case errors.Is(err, ErrNotFound):
			return Order{}, NotFound("order", err)
		default:
			return Order{}, Storage("update order status", err)
		}
	}
}

// SetStatus is the administrative override: any known status is accepted and
// the transition table is not consulted.
func (s *Service) SetStatus(ctx context.Context, id, raw string) (Order, error) {
	to, ok := ParseStatus(raw)
	if !ok {
		return Order{}, Validationf("unknown status %q", raw)
	}
	updated, err := s.Store.UpdateStatus(ctx, id, to, s.now())
	if errors.Is(err, ErrNotFound) {
		return Order{}, NotFound("order", err)
	}
	if err != nil {
		return Order{}, Storage("override order status", err)
	}
	s.notify(ctx, StatusChangedEvent(updated))
	s.Logger.Warn("order status overridden", "order_id", id, "status", string(to))
	return updated, nil
}

func (s *Service) Dishes(ctx context.Context) ([]Dish, error) {
	ds, err := s.Catalog.Available(ctx)
	if err != nil {
		return nil, Storage("list dishes", err)
	}
	return ds, nil
}

// Dish returns an available dish.
func (s *Service) Dish(ctx context.Context, id int64) (Dish, error) {
	d, err := s.Catalog.Dish(ctx, id)
	if errors.Is(err, ErrDishNotFound) || (err == nil && !d.IsAvailable) {
		return Dish{}, NotFound("dish", err)
	}
	if err != nil {
		return Dish{}, Storage("get dish", err)
	}
	return d, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	ds, err := s.Dishes(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ds))
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		if _, ok := seen[d.Category]; ok || d.Category == "" {
			continue
		}
		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}
	sort.Strings(out)
	return out, nil
}

type PaymentInput struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	Amount        *Money `json:"amount"`
}

type PaymentReceipt struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

// Pay is a stub: it checks the order exists and issues a transaction id.
// Nothing is settled and the order status does not change.
func (s *Service) Pay(ctx context.Context, in PaymentInput) (PaymentReceipt, error) {
	switch {
	case in.OrderID == "":
		return PaymentReceipt{}, Validationf("missing required field: order_id")
	case in.PaymentMethod == "":
		return PaymentReceipt{}, Validationf("missing required field: payment_method")
	case in.Amount == nil:
		return PaymentReceipt{}, Validationf("missing required field: amount")
	}
	if _, err := s.Get(ctx, in.OrderID); err != nil {
		return PaymentReceipt{}, err
	}
	return PaymentReceipt{
		Success:       true,
		Message:       "payment accepted",
		OrderID:       in.OrderID,
		TransactionID: fmt.Sprintf("TXN%s%d", in.OrderID, s.now().Unix()),
	}, nil
}
