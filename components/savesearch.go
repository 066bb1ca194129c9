package components

import (
	"strings"

	"github.com/google/uuid"

	"github.com/estia-labs/chatbridge/preferences"
)

// SaveSearchRule renders a "Save This Search" button when a search produced
// results and the originating query is known. Priority 60 places it after
// the carousel.
func SaveSearchRule() Rule {
	return Rule{
		Name:     "save_search_button",
		Priority: 60,
		Match: func(p Payload) bool {
			return p.HasResults() && strings.TrimSpace(p.UserQuery) != ""
		},
		Render: func(p Payload, _ preferences.Record) (Node, error) {
			return Card{
				Children: []Node{
					Row{
						Gap:   2,
						Align: "center",
						Children: []Node{
							Button{
								Label:     "Save This Search",
								IconStart: "star",
								Size:      "sm",
								Variant:   "outline",
								Color:     "primary",
								OnClickAction: &Action{
									Type: ActionSaveSearch,
									Payload: map[string]any{
										"query":    p.UserQuery,
										"searchId": "search_" + uuid.NewString()[:8],
									},
								},
							},
						},
					},
				},
			}, nil
		},
	}
}
