package components

import (
	"encoding/json"
	"strings"
)

type (
	// Payload is the structured state of one completed turn: the assistant
	// text (possibly empty), the user query that produced it, and the named
	// structured fields the agent returned alongside the messages.
	Payload struct {
		// AssistantText is the final assistant message content, empty when
		// the turn produced only structured data.
		AssistantText string `json:"assistant_text,omitempty"`
		// UserQuery is the user message that started the turn.
		UserQuery string `json:"user_query,omitempty"`
		// Fields holds the structured state fields keyed by name, e.g.
		// "query_results" and "selected_filters".
		Fields map[string]json.RawMessage `json:"fields,omitempty"`
	}

	// Filter is one entry of the selected_filters field.
	Filter struct {
		FieldName string      `json:"field_name"`
		Value     FilterValue `json:"value"`
		Operator  string      `json:"operator"`
	}

	// FilterValue decodes both string and numeric filter values into
	// display text.
	FilterValue string
)

// UnmarshalJSON accepts strings, numbers and booleans.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FilterValue(s)
		return nil
	}
	*v = FilterValue(strings.TrimSpace(string(data)))
	return nil
}

func (v FilterValue) String() string { return string(v) }

// Results decodes the query_results field. A missing or malformed field
// yields nil.
func (p Payload) Results() []Item {
	raw, ok := p.Fields["query_results"]
	if !ok {
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// SelectedFilters decodes the selected_filters field. A missing or malformed
// field yields nil.
func (p Payload) SelectedFilters() []Filter {
	raw, ok := p.Fields["selected_filters"]
	if !ok {
		return nil
	}
	var filters []Filter
	if err := json.Unmarshal(raw, &filters); err != nil {
		return nil
	}
	return filters
}

// HasResults reports whether the payload carries at least one result item.
func (p Payload) HasResults() bool {
	return len(p.Results()) > 0
}
