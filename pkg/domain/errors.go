package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned when a collaborator call is rejected before being made,
// e.g. loading ticket details with no selected id.
var ErrInvalidRequest = errors.New("invalid request")

// ErrTicketNotFound is returned by ticket backends when the id is unknown.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrUnknownEvent is returned when an event type is not part of a machine's vocabulary.
var ErrUnknownEvent = errors.New("unknown event")

// ErrSessionNotFound is returned when a session id is unknown or already closed.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotRunning is returned when an interpreter is asked to work before Start or after Stop.
var ErrNotRunning = errors.New("interpreter not running")

// DefinitionError reports a malformed machine definition. It is detected when the
// definition is built and is not recoverable at runtime.
type DefinitionError struct {
	Node   string // Path or id of the offending node
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Node == "" {
		return "invalid definition: " + e.Reason
	}
	return fmt.Sprintf("invalid definition at %q: %s", e.Node, e.Reason)
}

// OperationError wraps the failure of an asynchronous collaborator call.
// The wrapped error is the collaborator's opaque payload.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps err unless it already is an OperationError.
func NewOperationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}
