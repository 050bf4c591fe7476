package domain

import "strings"

// EventType identifies an event. Transitions are keyed by it.
type EventType string

const (
	doneSuffix  = ".done"
	errorSuffix = ".error"
)

// Event is the unit of input of an interpreter.
type Event interface {
	EventType() EventType
}

// Signal is a payload-free event, typically raised internally by an action.
type Signal EventType

// EventType implements Event.
func (s Signal) EventType() EventType {
	return EventType(s)
}

// DoneEvent is delivered when an invoked actor completes successfully.
type DoneEvent struct {
	Actor string
	Data  any
}

// EventType implements Event. The type is "<actor>.done".
func (e DoneEvent) EventType() EventType {
	return DoneType(e.Actor)
}

// ErrorEvent is delivered when an invoked actor fails.
type ErrorEvent struct {
	Actor string
	Err   error
}

// EventType implements Event. The type is "<actor>.error".
func (e ErrorEvent) EventType() EventType {
	return ErrorType(e.Actor)
}

// DoneType returns the event type delivered on success of the given actor.
func DoneType(actor string) EventType {
	return EventType(actor + doneSuffix)
}

// ErrorType returns the event type delivered on failure of the given actor.
func ErrorType(actor string) EventType {
	return EventType(actor + errorSuffix)
}

// IsActorEvent reports whether t is a synthetic actor outcome type.
func IsActorEvent(t EventType) bool {
	s := string(t)
	return strings.HasSuffix(s, doneSuffix) || strings.HasSuffix(s, errorSuffix)
}
