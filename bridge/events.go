// Package bridge converts upstream agent run streams into front-end
// protocol events. Nothing is forwarded until the upstream turn is
// terminal: the agent API does not support partial structured output, so
// intermediate frames would leak invalid states to the UI.
package bridge

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/estia-labs/chatbridge/components"
)

// EventType identifies the category of a front-end event.
type EventType string

const (
	// EventAssistantMessage carries completed assistant text.
	EventAssistantMessage EventType = "assistant_message"
	// EventWidget carries one rendered widget.
	EventWidget EventType = "widget"
	// EventTurnError carries a user-visible turn failure.
	EventTurnError EventType = "error"
)

type (
	// Sink delivers front-end events over a transport (SSE, WebSocket).
	// Implementations must be safe for concurrent Send calls.
	Sink interface {
		// Send publishes an event. It returns an error when delivery fails,
		// which aborts the remainder of the turn's emission.
		Send(ctx context.Context, event Event) error
		// Close releases the sink. Idempotent.
		Close(ctx context.Context) error
	}

	// Event is one front-end protocol event. Concrete types embed Base for
	// the standard accessors; consumers type-assert when they need the
	// typed payload.
	Event interface {
		// Type returns the event category.
		Type() EventType
		// ThreadID returns the front-end thread the event belongs to.
		ThreadID() string
		// Payload returns the JSON-serializable event payload.
		Payload() any
	}

	// Base provides the Event accessors. Fields are abbreviated since they
	// are only reached through the interface methods.
	Base struct {
		t  EventType
		th string
		p  any
	}

	// AssistantMessage is a completed assistant text event.
	AssistantMessage struct {
		Base
		Data AssistantMessagePayload
	}

	// AssistantMessagePayload is the wire payload of AssistantMessage.
	AssistantMessagePayload struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}

	// Widget is a completed widget event.
	Widget struct {
		Base
		Data WidgetPayload
	}

	// WidgetPayload is the wire payload of Widget.
	WidgetPayload struct {
		ID     string          `json:"id"`
		Rule   string          `json:"rule,omitempty"`
		Widget components.Node `json:"widget"`
	}

	// TurnError is a user-visible turn failure event.
	TurnError struct {
		Base
		Data TurnErrorPayload
	}

	// TurnErrorPayload is the wire payload of TurnError.
	TurnErrorPayload struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
)

// NewBase constructs a Base with the given type, thread ID and payload.
func NewBase(t EventType, threadID string, payload any) Base {
	return Base{t: t, th: threadID, p: payload}
}

// Type implements Event.
func (e Base) Type() EventType { return e.t }

// ThreadID implements Event.
func (e Base) ThreadID() string { return e.th }

// Payload implements Event.
func (e Base) Payload() any { return e.p }

// NewAssistantMessage builds an assistant message event with a fresh
// msg_-prefixed ID.
func NewAssistantMessage(threadID, text string) AssistantMessage {
	data := AssistantMessagePayload{ID: GenID("msg"), Text: text}
	return AssistantMessage{Base: NewBase(EventAssistantMessage, threadID, data), Data: data}
}

// NewWidget builds a widget event with a fresh widget_-prefixed ID.
func NewWidget(threadID string, w components.RenderedWidget) Widget {
	data := WidgetPayload{ID: GenID("widget"), Rule: w.Rule, Widget: w.Root}
	return Widget{Base: NewBase(EventWidget, threadID, data), Data: data}
}

// NewTurnError builds a turn error event with a fresh msg_-prefixed ID.
func NewTurnError(threadID, text string) TurnError {
	data := TurnErrorPayload{ID: GenID("msg"), Text: text}
	return TurnError{Base: NewBase(EventTurnError, threadID, data), Data: data}
}

// GenID returns a prefixed identifier: the prefix, an underscore and 8 hex
// characters.
func GenID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
