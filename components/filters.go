package components

import (
	"strconv"
	"strings"

	"github.com/estia-labs/chatbridge/preferences"
)

// FiltersCardRule renders the active search criteria as a card of badges.
// Priority 45 places it before the results carousel.
func FiltersCardRule() Rule {
	return Rule{
		Name:     "filters_card",
		Priority: 45,
		Match: func(p Payload) bool {
			return len(p.SelectedFilters()) > 0
		},
		Render: func(p Payload, _ preferences.Record) (Node, error) {
			filters := p.SelectedFilters()
			badges := make([]Node, 0, len(filters))
			for _, f := range filters {
				badges = append(badges, Badge{
					Label:   filterLabel(f.FieldName) + ": " + filterValue(f),
					Color:   "secondary",
					Variant: "soft",
				})
			}
			return Card{
				Size: "sm",
				Children: []Node{
					Col{
						Gap: 3,
						Children: []Node{
							Row{
								Align: "center",
								Children: []Node{
									Title{Value: "Filters applied", Size: "sm"},
									Spacer{},
									Badge{
										Label:   strconv.Itoa(len(filters)),
										Color:   "info",
										Variant: "soft",
									},
								},
							},
							Box{Direction: "row", Wrap: "wrap", Gap: 2, Children: badges},
						},
					},
				},
			}, nil
		},
	}
}

var filterFieldLabels = map[string]string{
	"price":               "Price",
	"type":                "Type",
	"address.prefecture":  "Location",
	"address.city":        "City",
	"propertyArea":        "Size",
	"numberOfRooms":       "Bedrooms",
	"numberOfBathrooms":   "Bathrooms",
	"floor":               "Floor",
	"constructionYear":    "Built",
	"energyClass":         "Energy Class",
	"hasElevator":         "Elevator",
	"hasPool":             "Pool",
	"hasGarden":           "Garden",
	"parkingType":         "Parking",
}

// filterLabel maps a raw field name to its display label, title-casing
// unknown snake_case names.
func filterLabel(field string) string {
	if label, ok := filterFieldLabels[field]; ok {
		return label
	}
	words := strings.Split(strings.ReplaceAll(field, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// filterValue formats a filter value for display, folding the comparison
// operator into the text and adding units for known numeric fields.
func filterValue(f Filter) string {
	v := f.Value.String()
	switch f.FieldName {
	case "price":
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return v
		}
		formatted := "€" + groupThousands(int64(n))
		switch f.Operator {
		case "lte":
			return "≤" + formatted
		case "gte":
			return "≥" + formatted
		}
		return formatted
	case "propertyArea":
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return v
		}
		formatted := trimFloat(n) + "m²"
		switch f.Operator {
		case "lte":
			return "≤" + formatted
		case "gte":
			return "≥" + formatted
		}
		return formatted
	case "numberOfRooms", "numberOfBathrooms", "floor":
		switch f.Operator {
		case "gte":
			return v + "+"
		case "lte":
			return "≤" + v
		}
	}
	return v
}
