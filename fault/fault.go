// Package fault defines the typed error taxonomy shared by the assistant core.
// Tool bodies never let a lower-level datastore or provider error escape
// unwrapped; they translate it into one of these kinds with added context.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an assistant-core failure.
type Kind string

const (
	// NotFound means a referenced entity does not exist.
	NotFound Kind = "not_found"

	// Disambiguation means multiple entities matched a reference and the
	// caller must ask the user to pick. It is a control-flow branch rather
	// than a user-facing error.
	Disambiguation Kind = "disambiguation"

	// Validation means tool input failed schema constraints. Always rejected
	// before any side effect occurs.
	Validation Kind = "validation"

	// ConfirmationRequired means a destructive or financial tool was invoked
	// without its confirmation flag set.
	ConfirmationRequired Kind = "confirmation_required"

	// Upstream means the datastore or generative dependency errored.
	Upstream Kind = "upstream"

	// StepBudget means the orchestrator exceeded its bounded tool-invocation
	// count for a turn. Fatal to the turn, not retried.
	StepBudget Kind = "step_budget_exceeded"
)

// Error is a classified assistant-core error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, adding context.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or "" if err carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
