package agentapi

import "encoding/json"

type (
	// Message is one conversation entry of an upstream state frame.
	Message struct {
		// ID is the upstream message identifier.
		ID string `json:"id,omitempty"`
		// Type is "human" or "ai".
		Type string `json:"type"`
		// Content is the message text.
		Content string `json:"content"`
	}

	// Metadata is the frame the upstream emits at the start of a run. It
	// carries exactly a run identifier and an attempt counter.
	Metadata struct {
		RunID   string `json:"run_id"`
		Attempt int    `json:"attempt"`
	}

	// StateEvent is one parsed frame of the upstream stream. Either Meta is
	// set (a metadata frame, no conversation state) or the remaining fields
	// describe the full conversation state after an agent step.
	StateEvent struct {
		// Meta is non-nil for metadata frames.
		Meta *Metadata
		// Messages is the conversation so far.
		Messages []Message
		// RoutingAction is the agent's pending routing decision, empty when
		// the agent is done or handing off.
		RoutingAction string
		// Fields holds every named structured field of the frame other than
		// the messages, keyed by name (query_results, selected_filters, ...).
		Fields map[string]json.RawMessage
	}
)

// MessageTypeAssistant is the upstream type tag of assistant messages.
const MessageTypeAssistant = "ai"

// parseStateEvent decodes a raw data frame. Frames carrying exactly run_id
// and attempt are metadata frames; everything else is conversation state.
func parseStateEvent(data []byte) (StateEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return StateEvent{}, err
	}

	if len(fields) == 2 {
		if _, hasRun := fields["run_id"]; hasRun {
			if _, hasAttempt := fields["attempt"]; hasAttempt {
				var meta Metadata
				if err := json.Unmarshal(data, &meta); err != nil {
					return StateEvent{}, err
				}
				return StateEvent{Meta: &meta}, nil
			}
		}
	}

	ev := StateEvent{Fields: fields}
	if raw, ok := fields["messages"]; ok {
		if err := json.Unmarshal(raw, &ev.Messages); err != nil {
			return StateEvent{}, err
		}
		delete(fields, "messages")
	}
	if raw, ok := fields["routing_action"]; ok {
		// Null decodes to the empty string, meaning no pending action.
		_ = json.Unmarshal(raw, &ev.RoutingAction)
	}
	return ev, nil
}

// LatestAssistantMessage returns the most recent assistant message, or nil
// when the conversation has none.
func (e StateEvent) LatestAssistantMessage() *Message {
	for i := len(e.Messages) - 1; i >= 0; i-- {
		if e.Messages[i].Type == MessageTypeAssistant {
			return &e.Messages[i]
		}
	}
	return nil
}

// IsTerminal reports whether the frame is a final response: an assistant
// message is present and no routing action is pending ("handoff" completes
// the conversation).
func (e StateEvent) IsTerminal() bool {
	if e.Meta != nil {
		return false
	}
	if e.LatestAssistantMessage() == nil {
		return false
	}
	return e.RoutingAction == "" || e.RoutingAction == "handoff"
}
