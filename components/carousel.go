package components

import (
	"fmt"

	"github.com/estia-labs/chatbridge/preferences"
)

// MaxCarouselItems caps how many results the carousel shows.
const MaxCarouselItems = 20

// CarouselRule renders search results as a horizontally scrollable carousel.
// Hidden items are filtered out before the cap applies; favorited items get
// a filled star. Priority 50 places it after the filters card.
func CarouselRule(maxItems int) Rule {
	if maxItems <= 0 {
		maxItems = MaxCarouselItems
	}
	return Rule{
		Name:     "results_carousel",
		Priority: 50,
		Match:    Payload.HasResults,
		Render: func(p Payload, prefs preferences.Record) (Node, error) {
			items := visibleItems(p.Results(), prefs)
			if len(items) == 0 {
				return nil, nil
			}
			total := len(items)
			if len(items) > maxItems {
				items = items[:maxItems]
			}

			cards := make([]Node, 0, len(items))
			for _, it := range items {
				cards = append(cards, carouselCard(it, prefs.IsFavorite(it.Key())))
			}

			title := fmt.Sprintf("Found %d Properties", total)
			if total > maxItems {
				title = fmt.Sprintf("Found %d Properties (showing first %d)", total, maxItems)
			}

			return Card{
				Size: "md",
				Children: []Node{
					Title{Value: title, Size: "md", Weight: "semibold"},
					Box{
						MaxWidth: "100%",
						Children: []Node{
							Row{
								Gap:      "xl",
								Wrap:     "nowrap",
								Padding:  map[string]string{"x": "lg", "y": "lg"},
								Children: cards,
							},
						},
					},
				},
			}, nil
		},
	}
}

// visibleItems drops hidden items, preserving order.
func visibleItems(items []Item, prefs preferences.Record) []Item {
	out := items[:0:0]
	for _, it := range items {
		if prefs.IsHidden(it.Key()) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// carouselCard builds one carousel entry: image, title, price, specs,
// location, preference buttons, and a drilldown click action.
func carouselCard(it Item, favorited bool) Node {
	content := []Node{
		Image{
			Src:    it.DefaultImagePath,
			Alt:    displayTitle(it),
			Height: 150,
			Fit:    "cover",
			Radius: "lg",
			Flush:  true,
		},
		Text{
			Value:    displayTitle(it),
			Size:     "md",
			Weight:   "bold",
			Truncate: true,
			MaxLines: 2,
			Padding:  map[string]string{"top": "md", "bottom": "xs"},
		},
		Text{
			Value:   FormatPrice(it.Price),
			Size:    "xl",
			Weight:  "bold",
			Color:   "primary",
			Padding: map[string]string{"bottom": "xs"},
		},
	}
	if specs := it.Specs(); specs != "" {
		content = append(content, Caption{
			Value:   specs,
			Size:    "sm",
			Color:   "secondary",
			Padding: map[string]string{"bottom": "xs"},
		})
	}
	if it.Address.Prefecture != "" {
		content = append(content, Caption{
			Value: "📍 " + it.Address.Prefecture,
			Size:  "sm",
			Color: "secondary",
		})
	}
	content = append(content, Row{
		Gap:   1,
		Align: "center",
		Children: []Node{
			FavoriteButton(it.Key(), favorited),
			HideButton(it.Key()),
		},
	})

	return Box{
		Padding:  "xl",
		Radius:   "xl",
		MinWidth: 280,
		MaxWidth: 280,
		Cursor:   "pointer",
		OnClickAction: &Action{
			Type: ActionViewItemDetails,
			Payload: map[string]any{
				"item_id":   it.Key(),
				"item_data": it.RenderData(),
			},
		},
		Children: content,
	}
}

func displayTitle(it Item) string {
	if it.Title != "" {
		return it.Title
	}
	return "Property"
}
