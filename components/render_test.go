package components

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estia-labs/chatbridge/preferences"
)

func renderCarousel(t *testing.T, results []map[string]any, prefs preferences.Record) string {
	t.Helper()
	p := payloadWith(t, map[string]any{"query_results": results})
	widgets := NewRegistry()
	widgets.Register(CarouselRule(MaxCarouselItems))
	out := widgets.Widgets(context.Background(), p, prefs)
	if len(out) == 0 {
		return ""
	}
	b, err := json.Marshal(out[0].Root)
	require.NoError(t, err)
	return string(b)
}

func TestCarouselFiltersHiddenItems(t *testing.T) {
	results := []map[string]any{
		{"code": "A1", "title": "Visible", "price": 100000},
		{"code": "B2", "title": "Hidden one", "price": 90000},
	}
	prefs := preferences.NewRecord()
	prefs.Hidden["B2"] = json.RawMessage(`{}`)

	rendered := renderCarousel(t, results, prefs)
	require.Contains(t, rendered, `"A1"`)
	require.NotContains(t, rendered, `"B2"`)
	require.Contains(t, rendered, "Found 1 Properties")
}

func TestCarouselAllHiddenRendersNothing(t *testing.T) {
	results := []map[string]any{{"code": "A1", "price": 1}}
	prefs := preferences.NewRecord()
	prefs.Hidden["A1"] = json.RawMessage(`{}`)

	require.Empty(t, renderCarousel(t, results, prefs))
}

func TestCarouselCapsAtTwenty(t *testing.T) {
	results := make([]map[string]any, 25)
	for i := range results {
		results[i] = map[string]any{"code": "P" + strings.Repeat("0", 2) + string(rune('a'+i)), "price": 1000}
	}
	rendered := renderCarousel(t, results, preferences.NewRecord())
	require.Contains(t, rendered, "Found 25 Properties (showing first 20)")
	require.Equal(t, 20, strings.Count(rendered, `"view_item_details"`))
}

func TestCarouselAnnotatesFavorites(t *testing.T) {
	results := []map[string]any{
		{"code": "FAV", "price": 1},
		{"code": "PLAIN", "price": 1},
	}
	prefs := preferences.NewRecord()
	prefs.Favorites["FAV"] = json.RawMessage(`{}`)

	rendered := renderCarousel(t, results, prefs)
	require.Equal(t, 1, strings.Count(rendered, "star-filled"))
	// One plain star per non-favorited item.
	require.Equal(t, 1, strings.Count(rendered, `"star"`))
}

func TestFiltersCardFormatting(t *testing.T) {
	p := payloadWith(t, map[string]any{
		"selected_filters": []map[string]any{
			{"field_name": "price", "value": "150000", "operator": "lte"},
			{"field_name": "propertyArea", "value": 80, "operator": "gte"},
			{"field_name": "numberOfRooms", "value": "3", "operator": "gte"},
			{"field_name": "address.prefecture", "value": "Athens", "operator": "eq"},
			{"field_name": "has_sea_view", "value": "true", "operator": "eq"},
		},
	})
	widgets := NewRegistry()
	widgets.Register(FiltersCardRule())
	out := widgets.Widgets(context.Background(), p, preferences.NewRecord())
	require.Len(t, out, 1)

	b, err := json.Marshal(out[0].Root)
	require.NoError(t, err)
	rendered := string(b)
	require.Contains(t, rendered, "Price: ≤€150,000")
	require.Contains(t, rendered, "Size: ≥80m²")
	require.Contains(t, rendered, "Bedrooms: 3+")
	require.Contains(t, rendered, "Location: Athens")
	require.Contains(t, rendered, "Has Sea View: true")
	require.Contains(t, rendered, "Filters applied")
}

func TestSaveSearchRequiresUserQuery(t *testing.T) {
	p := payloadWith(t, map[string]any{
		"query_results": []map[string]any{{"code": "A1"}},
	})
	widgets := NewRegistry()
	widgets.Register(SaveSearchRule())

	require.Empty(t, widgets.Widgets(context.Background(), p, preferences.NewRecord()))

	p.UserQuery = "houses in Athens"
	out := widgets.Widgets(context.Background(), p, preferences.NewRecord())
	require.Len(t, out, 1)
	b, err := json.Marshal(out[0].Root)
	require.NoError(t, err)
	require.Contains(t, string(b), "Save This Search")
	require.Contains(t, string(b), "houses in Athens")
}

func TestDetailCardShowsPreferenceState(t *testing.T) {
	it := Item{
		Code:      "A1",
		Title:     "Sunny loft",
		Price:     115000,
		Amenities: map[string]bool{"hasPool": true, "hasGarden": false},
		Address:   Address{Prefecture: "Athens", Country: "GR"},
		Extra: map[string]json.RawMessage{
			"constructionYear": json.RawMessage(`1998`),
		},
	}

	prefs := preferences.NewRecord()
	prefs.Favorites["A1"] = json.RawMessage(`{}`)
	prefs.Hidden["A1"] = json.RawMessage(`{}`)

	b, err := json.Marshal(DetailCard(it, "generated text", prefs))
	require.NoError(t, err)
	rendered := string(b)

	require.Contains(t, rendered, "Sunny loft")
	require.Contains(t, rendered, "€115,000")
	require.Contains(t, rendered, "generated text")
	require.Contains(t, rendered, "star-filled")
	require.Contains(t, rendered, "Hidden")
	require.Contains(t, rendered, "Pool")
	require.NotContains(t, rendered, "Garden")
	require.Contains(t, rendered, "Built")
	require.Contains(t, rendered, "1998")
}

func TestDetailCardOffersGenerationWhenNoDescription(t *testing.T) {
	b, err := json.Marshal(DetailCard(Item{Code: "A1"}, "", preferences.NewRecord()))
	require.NoError(t, err)
	require.Contains(t, string(b), "generate_description")
}
