package orders

import "testing"

func TestActionNext(t *testing.T) {
	tests := []struct {
		action  Action
		from    Status
		want    Status
		wantErr string
	}{
		{ActionAccept, StatusPending, StatusAccepted, ""},
		{ActionAccept, StatusAccepted, "", "cannot accept"},
		{ActionStart, StatusAccepted, StatusPreparing, ""},
		{ActionStart, StatusPending, "", "must accept first"},
		{ActionComplete, StatusPreparing, StatusCompleted, ""},
		{ActionComplete, StatusAccepted, "", "must start preparing first"},
		{ActionCancel, StatusPending, StatusCancelled, ""},
		{ActionCancel, StatusAccepted, StatusCancelled, ""},
		{ActionCancel, StatusPreparing, StatusCancelled, ""},
		{ActionCancel, StatusCompleted, "", "already completed"},
		{ActionCancel, StatusCancelled, "", "already cancelled"},
		{ActionAccept, StatusCancelled, "", "cannot accept"},
	}
	for _, tt := range tests {
		t.Run(string(tt.action)+"_from_"+string(tt.from), func(t *testing.T) {
			got, err := tt.action.Next(tt.from)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %s, got %s", tt.want, got)
				}
				return
			}
			var e *Error
			if err == nil {
				t.Fatal("expected error")
			}
			if k := KindOf(err); k != KindInvalidTransition {
				t.Fatalf("expected kind %s, got %s", KindInvalidTransition, k)
			}
			e = err.(*Error)
			if want := tt.wantErr + " (order is " + string(tt.from) + ")"; e.Message != want {
				t.Errorf("expected message %q, got %q", want, e.Message)
			}
		})
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		if !from.Terminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range []Status{StatusPending, StatusAccepted, StatusPreparing, StatusCompleted, StatusCancelled} {
			if CanTransition(from, to) {
				t.Errorf("unexpected transition %s -> %s", from, to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" PREPARING "); !ok || s != StatusPreparing {
		t.Errorf("expected preparing, got %q ok=%v", s, ok)
	}
	if _, ok := ParseStatus("delivered"); ok {
		t.Error("expected delivered to be rejected")
	}
}

func TestUnknownAction(t *testing.T) {
	if _, ok := ParseAction("refund"); ok {
		t.Fatal("refund is not an action")
	}
	if _, err := Action("refund").Next(StatusPending); KindOf(err) != KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestActionsFollowTransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusAccepted, StatusPreparing, StatusCompleted, StatusCancelled}
	for _, a := range []Action{ActionAccept, ActionStart, ActionComplete, ActionCancel} {
		for _, from := range all {
			to, err := a.Next(from)
			allowed := CanTransition(from, rules[a].to)
			if allowed != (err == nil) {
				t.Errorf("%s from %s: table allows=%v, got err=%v", a, from, allowed, err)
			}
			if err == nil && to != rules[a].to {
				t.Errorf("%s from %s: expected %s, got %s", a, from, rules[a].to, to)
			}
		}
	}
}
