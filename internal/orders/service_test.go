package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/menu"
	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
)

type recorder struct {
	mu     sync.Mutex
	events []orders.Event
}

func (r *recorder) Notify(_ context.Context, ev orders.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []orders.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orders.Event(nil), r.events...)
}

type failingStore struct {
	*orders.MemStore
	err error
}

func (s failingStore) Create(context.Context, orders.Order) (orders.Order, error) {
	return orders.Order{}, s.err
}

func newService(t *testing.T) (*orders.Service, *recorder, *menu.MemCatalog) {
	t.Helper()
	rec := &recorder{}
	cat := menu.NewMemCatalog(menu.Seed()...)
	svc := orders.NewService(orders.NewMemStore(), cat, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var n atomic.Int64
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return base.Add(time.Duration(n.Add(1)) * time.Second) }
	return svc, rec, cat
}

func placeOrder(t *testing.T, svc *orders.Service) orders.Order {
	t.Helper()
	o, err := svc.Create(context.Background(), orders.CreateOrderInput{
		UserID:   "u1",
		UserName: "Alice",
		Items: []orders.ItemInput{
			{DishID: 1, Quantity: 2},
			{DishID: 2, Quantity: 1},
		},
		Note: "less spicy",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func TestCreateOrder(t *testing.T) {
	svc, rec, _ := newService(t)
	o := placeOrder(t, svc)

	if o.Status != orders.StatusPending {
		t.Errorf("expected pending, got %s", o.Status)
	}
	if !o.TotalAmount.Equal(orders.MustMoney("75.90")) {
		t.Errorf("expected total 75.90, got %s", o.TotalAmount)
	}
	if o.Items[0].DishName != "Kung Pao Chicken" || !o.Items[0].Price.Equal(orders.MustMoney("28")) {
		t.Errorf("line not priced from the catalog: %+v", o.Items[0])
	}
	if !o.CreatedAt.Equal(o.UpdatedAt) {
		t.Error("created_at and updated_at should match on creation")
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != orders.EventNewOrder || ev.Order.ID != o.ID || ev.Order.ItemsCount != 2 ||
		ev.Order.UserName != "Alice" || !ev.Order.TotalAmount.Equal(o.TotalAmount) {
		t.Errorf("unexpected event: %+v", ev.Order)
	}

	stored, err := svc.Get(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Note != "less spicy" || len(stored.Items) != 2 {
		t.Errorf("unexpected stored order: %+v", stored)
	}
}

func TestCreateOrderIgnoresClientPrice(t *testing.T) {
	svc, _, _ := newService(t)
	bogus := orders.MustMoney("0.01")
	o, err := svc.Create(context.Background(), orders.CreateOrderInput{
		UserID: "u1", UserName: "Alice",
		Items: []orders.ItemInput{{DishID: 2, Quantity: 3, DishName: "free tofu", Price: &bogus}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !o.TotalAmount.Equal(orders.MustMoney("59.70")) {
		t.Errorf("expected 59.70, got %s", o.TotalAmount)
	}
	if o.Items[0].DishName != "Mapo Tofu" {
		t.Errorf("expected catalog name, got %q", o.Items[0].DishName)
	}
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   orders.CreateOrderInput
		kind orders.Kind
	}{
		{"missing user id", orders.CreateOrderInput{UserName: "A", Items: []orders.ItemInput{{DishID: 1, Quantity: 1}}}, orders.KindValidation},
		{"missing user name", orders.CreateOrderInput{UserID: "u", Items: []orders.ItemInput{{DishID: 1, Quantity: 1}}}, orders.KindValidation},
		{"no items", orders.CreateOrderInput{UserID: "u", UserName: "A"}, orders.KindValidation},
		{"quantity too large", orders.CreateOrderInput{UserID: "u", UserName: "A", Items: []orders.ItemInput{{DishID: 1, Quantity: orders.MaxItemQuantity + 1}}}, orders.KindValidation},
		{"zero quantity", orders.CreateOrderInput{UserID: "u", UserName: "A", Items: []orders.ItemInput{{DishID: 1}}}, orders.KindValidation},
		{"unknown dish", orders.CreateOrderInput{UserID: "u", UserName: "A", Items: []orders.ItemInput{{DishID: 99, Quantity: 1}}}, orders.KindInvalidItem},
		{"unavailable dish", orders.CreateOrderInput{UserID: "u", UserName: "A", Items: []orders.ItemInput{{DishID: 5, Quantity: 1}}}, orders.KindInvalidItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec, _ := newService(t)
			_, err := svc.Create(context.Background(), tt.in)
			if k := orders.KindOf(err); k != tt.kind {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if n := len(rec.all()); n != 0 {
				t.Errorf("expected no events, got %d", n)
			}
			if list, _ := svc.List(context.Background(), orders.Filter{}); len(list) != 0 {
				t.Errorf("expected nothing stored, got %d orders", len(list))
			}
		})
	}
}

func TestCreateOrderRejectsOversizedTotal(t *testing.T) {
	svc, rec, cat := newService(t)
	cat.Put(orders.Dish{ID: 9, Name: "Banquet", Price: orders.MustMoney("99999999.99"), Category: "Banquets", IsAvailable: true})

	_, err := svc.Create(context.Background(), orders.CreateOrderInput{
		UserID: "u1", UserName: "Alice", Items: []orders.ItemInput{{DishID: 9, Quantity: orders.MaxItemQuantity}},
	})
	if orders.KindOf(err) != orders.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestCreateOrderStoreFailureDoesNotNotify(t *testing.T) {
	rec := &recorder{}
	store := failingStore{MemStore: orders.NewMemStore(), err: errors.New("connection refused")}
	svc := orders.NewService(store, menu.NewMemCatalog(menu.Seed()...), rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Create(context.Background(), orders.CreateOrderInput{
		UserID: "u1", UserName: "Alice", Items: []orders.ItemInput{{DishID: 1, Quantity: 1}},
	})
	if orders.KindOf(err) != orders.KindStorage {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("expected no events after a failed write, got %d", n)
	}
}

func TestLifecycle(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()
	o := placeOrder(t, svc)

	steps := []struct {
		fn   func(context.Context, string) (orders.Order, error)
		want orders.Status
	}{
		{svc.Accept, orders.StatusAccepted},
		{svc.Start, orders.StatusPreparing},
		{svc.Complete, orders.StatusCompleted},
	}
	prev := o.UpdatedAt
	for _, step := range steps {
		got, err := step.fn(ctx, o.ID)
		if err != nil {
			t.Fatalf("transition to %s: %v", step.want, err)
		}
		if got.Status != step.want {
			t.Fatalf("expected %s, got %s", step.want, got.Status)
		}
		if !got.UpdatedAt.After(prev) {
			t.Errorf("updated_at did not advance on %s", step.want)
		}
		if !got.CreatedAt.Equal(o.CreatedAt) {
			t.Error("created_at changed")
		}
		prev = got.UpdatedAt
	}

	_, err := svc.Cancel(ctx, o.ID)
	if orders.KindOf(err) != orders.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	events := rec.all()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	for i, want := range []orders.Status{orders.StatusAccepted, orders.StatusPreparing, orders.StatusCompleted} {
		ev := events[i+1]
		if ev.Type != orders.EventStatusChanged || ev.OrderID != o.ID || ev.Status != want {
			t.Errorf("event %d: unexpected %+v", i+1, ev)
		}
	}
}

func TestRejectedTransitionLeavesOrderUntouched(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()
	o := placeOrder(t, svc)

	if _, err := svc.Complete(ctx, o.ID); orders.KindOf(err) != orders.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, _ := svc.Get(ctx, o.ID)
	if got.Status != orders.StatusPending || !got.UpdatedAt.Equal(o.UpdatedAt) {
		t.Errorf("order changed after rejected transition: %+v", got)
	}
	if n := len(rec.all()); n != 1 {
		t.Errorf("expected only the creation event, got %d", n)
	}
}

func TestCancelFromEveryActiveState(t *testing.T) {
	ctx := context.Background()
	for _, advance := range [][]orders.Action{
		nil,
		{orders.ActionAccept},
		{orders.ActionAccept, orders.ActionStart},
	} {
		svc, _, _ := newService(t)
		o := placeOrder(t, svc)
		for _, a := range advance {
			if _, err := svc.Apply(ctx, o.ID, a); err != nil {
				t.Fatalf("%s: %v", a, err)
			}
		}
		got, err := svc.Cancel(ctx, o.ID)
		if err != nil {
			t.Fatalf("cancel after %v: %v", advance, err)
		}
		if got.Status != orders.StatusCancelled {
			t.Errorf("expected cancelled, got %s", got.Status)
		}
		if _, err := svc.Accept(ctx, o.ID); orders.KindOf(err) != orders.KindInvalidTransition {
			t.Errorf("cancelled order accepted: %v", err)
		}
	}
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()
	o := placeOrder(t, svc)

	const n = 16
	var (
		wg       sync.WaitGroup
		ok, lost atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Accept(ctx, o.ID)
			switch orders.KindOf(err) {
			case "":
				ok.Add(1)
			case orders.KindInvalidTransition:
				lost.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || lost.Load() != n-1 {
		t.Fatalf("expected 1 winner, got %d winners and %d losers", ok.Load(), lost.Load())
	}
	var changes int
	for _, ev := range rec.all() {
		if ev.Type == orders.EventStatusChanged {
			changes++
		}
	}
	if changes != 1 {
		t.Errorf("expected exactly one status_changed event, got %d", changes)
	}
}

func TestConcurrentCancelAndAccept(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	o := placeOrder(t, svc)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = svc.Accept(ctx, o.ID) }()
	go func() { defer wg.Done(); _, errs[1] = svc.Cancel(ctx, o.ID) }()
	wg.Wait()

	// cancel is legal from both pending and accepted, so it always lands
	if errs[1] != nil {
		t.Errorf("cancel failed: %v", errs[1])
	}
	if got, _ := svc.Get(ctx, o.ID); got.Status != orders.StatusCancelled {
		t.Errorf("expected final status cancelled, got %s", got.Status)
	}
}

func TestUnknownOrder(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Get(ctx, "missing"); orders.KindOf(err) != orders.KindNotFound {
		t.Errorf("get: expected not found, got %v", err)
	}
	if _, err := svc.Accept(ctx, "missing"); orders.KindOf(err) != orders.KindNotFound {
		t.Errorf("accept: expected not found, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, "missing", "accepted"); orders.KindOf(err) != orders.KindNotFound {
		t.Errorf("override: expected not found, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	a := placeOrder(t, svc)
	placeOrder(t, svc)
	if _, err := svc.Accept(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	accepted, err := svc.List(ctx, orders.Filter{Status: orders.StatusAccepted})
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].ID != a.ID {
		t.Errorf("unexpected filtered list: %+v", accepted)
	}
	if _, err := svc.List(ctx, orders.Filter{Status: "lost"}); orders.KindOf(err) != orders.KindValidation {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestDetailEnrichesItems(t *testing.T) {
	svc, _, cat := newService(t)
	ctx := context.Background()
	o := placeOrder(t, svc)

	d, err := svc.Detail(ctx, o.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.Items[0].CookingInstructions == "" || d.Items[1].CookingInstructions == "" {
		t.Errorf("expected cooking notes on every line: %+v", d.Items)
	}

	cat.Remove(2)
	d, err = svc.Detail(ctx, o.ID)
	if err != nil {
		t.Fatalf("detail after dish removal: %v", err)
	}
	if d.Items[1].CookingInstructions != "" || d.Items[1].DishName != "Mapo Tofu" {
		t.Errorf("removed dish should keep its line without notes: %+v", d.Items[1])
	}
}

func TestSetStatusOverride(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()
	o := placeOrder(t, svc)

	got, err := svc.SetStatus(ctx, o.ID, "COMPLETED")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.Status != orders.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	// the override may leave terminal states too
	if got, err = svc.SetStatus(ctx, o.ID, "pending"); err != nil || got.Status != orders.StatusPending {
		t.Errorf("override from terminal: %v %+v", err, got)
	}
	if _, err := svc.SetStatus(ctx, o.ID, "delivered"); orders.KindOf(err) != orders.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if n := len(rec.all()); n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}
}

func TestMenuQueries(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	ds, err := svc.Dishes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 4 {
		t.Errorf("expected 4 available dishes, got %d", len(ds))
	}
	if _, err := svc.Dish(ctx, 5); orders.KindOf(err) != orders.KindNotFound {
		t.Errorf("unavailable dish should be not found, got %v", err)
	}
	cats, _ := svc.Categories(ctx)
	want := []string{"Cold Dishes", "Hot Dishes", "Staples"}
	if len(cats) != len(want) {
		t.Fatalf("expected %v, got %v", want, cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("expected %v, got %v", want, cats)
		}
	}
}

func TestPay(t *testing.T) {
	svc, _, _ := newService(t)
	o := placeOrder(t, svc)
	amount := o.TotalAmount

	r, err := svc.Pay(context.Background(), orders.PaymentInput{OrderID: o.ID, PaymentMethod: "card", Amount: &amount})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !r.Success || r.OrderID != o.ID || r.TransactionID == "" {
		t.Errorf("unexpected receipt: %+v", r)
	}
	if _, err := svc.Pay(context.Background(), orders.PaymentInput{OrderID: o.ID, PaymentMethod: "card"}); orders.KindOf(err) != orders.KindValidation {
		t.Errorf("expected validation error without amount, got %v", err)
	}
}
