package core

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so adapters can map them to responses.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidBudget     Kind = "invalid_budget"
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
)

// Error is a categorized domain error. Op names the ledger operation that
// failed and Msg describes the condition.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of Op and Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrInvalidBudget     = &Error{Kind: KindInvalidBudget, Msg: "invalid budget"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "envelope not found"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
)

// NewError builds a categorized error for op.
func NewError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when the
// error is uncategorized.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
