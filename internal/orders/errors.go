package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrDuplicateID    = errors.New("order id already exists")
	ErrStatusConflict = errors.New("order status changed concurrently")
	ErrDishNotFound   = errors.New("dish not found")
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidItem       Kind = "invalid_item"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindStorage           Kind = "storage_failure"
)

// Error is what the service returns to callers. Message is safe to show to
// clients; Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidItemf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidItem, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
}

func InvalidTransition(reason string, current Status) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s (order is %s)", reason, current),
	}
}

func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: "storage unavailable", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
