package backlog

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// External event types.
const (
	EventLoadList         domain.EventType = "LOAD_LIST"
	EventSelectTicket     domain.EventType = "SELECT_TICKET"
	EventCloseDetails     domain.EventType = "CLOSE_DETAILS"
	EventUpdateTitle      domain.EventType = "UPDATE_TITLE"
	EventRetryLoadList    domain.EventType = "RETRY_LOAD_LIST"
	EventRetryLoadDetails domain.EventType = "RETRY_LOAD_DETAILS"
)

// Event is the closed set of events the view layer may send.
type Event interface {
	domain.Event
	isBacklogEvent()
}

// LoadList fetches (or refreshes) the ticket list.
type LoadList struct{}

// SelectTicket opens the details sidebar on a ticket.
type SelectTicket struct {
	ID string `json:"id" mapstructure:"id"`
}

// CloseDetails closes the details sidebar.
type CloseDetails struct{}

// UpdateTitle renames a ticket.
type UpdateTitle struct {
	ID    string `json:"id" mapstructure:"id"`
	Title string `json:"title" mapstructure:"title"`
}

// RetryLoadList retries a failed list load.
type RetryLoadList struct{}

// RetryLoadDetails retries a failed details load.
type RetryLoadDetails struct{}

func (LoadList) EventType() domain.EventType         { return EventLoadList }
func (SelectTicket) EventType() domain.EventType     { return EventSelectTicket }
func (CloseDetails) EventType() domain.EventType     { return EventCloseDetails }
func (UpdateTitle) EventType() domain.EventType      { return EventUpdateTitle }
func (RetryLoadList) EventType() domain.EventType    { return EventRetryLoadList }
func (RetryLoadDetails) EventType() domain.EventType { return EventRetryLoadDetails }

func (LoadList) isBacklogEvent()         {}
func (SelectTicket) isBacklogEvent()     {}
func (CloseDetails) isBacklogEvent()     {}
func (UpdateTitle) isBacklogEvent()      {}
func (RetryLoadList) isBacklogEvent()    {}
func (RetryLoadDetails) isBacklogEvent() {}

// EventTypes lists the external event types in a stable order.
func EventTypes() []domain.EventType {
	return []domain.EventType{
		EventLoadList,
		EventSelectTicket,
		EventCloseDetails,
		EventUpdateTitle,
		EventRetryLoadList,
		EventRetryLoadDetails,
	}
}

// ParseEvent decodes an external event from its type and a loosely typed payload, as
// received from HTTP, MCP or the REPL. Unknown types wrap domain.ErrUnknownEvent.
func ParseEvent(typ string, payload map[string]any) (Event, error) {
	switch domain.EventType(typ) {
	case EventLoadList:
		return LoadList{}, nil
	case EventSelectTicket:
		var ev SelectTicket
		if err := decode(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventCloseDetails:
		return CloseDetails{}, nil
	case EventUpdateTitle:
		var ev UpdateTitle
		if err := decode(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventRetryLoadList:
		return RetryLoadList{}, nil
	case EventRetryLoadDetails:
		return RetryLoadDetails{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, typ)
	}
}

func decode(payload map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(payload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// internal events, exchanged between the core and view regions.
type internal domain.EventType

func (e internal) EventType() domain.EventType { return domain.EventType(e) }

const (
	startLoadingList    internal = "internal.START_LOADING_LIST"
	listLoadSuccess     internal = "internal.LIST_LOAD_SUCCESS"
	listLoadError       internal = "internal.LIST_LOAD_ERROR"
	startLoadingDetails internal = "internal.START_LOADING_DETAILS"
	stopLoadingDetails  internal = "internal.STOP_LOADING_DETAILS"
	detailsLoadSuccess  internal = "internal.DETAILS_LOAD_SUCCESS"
	detailsLoadError    internal = "internal.DETAILS_LOAD_ERROR"
)

const eventUpdateRejected domain.EventType = "internal.UPDATE_REJECTED"

// updateRejected reports a failed title update to the details view.
type updateRejected struct {
	Err error
}

func (updateRejected) EventType() domain.EventType { return eventUpdateRejected }
