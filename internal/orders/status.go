package orders

import "strings"

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusAccepted: true, StatusCancelled: true},
	StatusAccepted:  {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// ParseStatus accepts any casing ("PENDING", "pending").
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Action is a merchant-side command that drives one edge of the lifecycle.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type rule struct {
	to     Status
	reject string
	done   string
}

// rules name the target of each action; whether it is reachable is decided
// by validNext alone.
var rules = map[Action]rule{
	ActionAccept:   {to: StatusAccepted, reject: "cannot accept", done: "order accepted"},
	ActionStart:    {to: StatusPreparing, reject: "must accept first", done: "preparation started"},
	ActionComplete: {to: StatusCompleted, reject: "must start preparing first", done: "order completed"},
	ActionCancel:   {to: StatusCancelled, reject: "cannot cancel", done: "order cancelled"},
}

// Next returns the status reached by applying a to an order in status from.
func (a Action) Next(from Status) (Status, error) {
	r, ok := rules[a]
	if !ok {
		return "", Validationf("unknown action %q", a)
	}
	if CanTransition(from, r.to) {
		return r.to, nil
	}
	reason := r.reject
	if a == ActionCancel && from.Terminal() {
		reason = "already " + string(from)
	}
	return "", InvalidTransition(reason, from)
}

// Message is the human-readable confirmation for a successful action.
func (a Action) Message() string {
	return rules[a].done
}

func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := rules[a]
	return a, ok
}
