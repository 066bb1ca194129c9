package components

import (
	"strings"

	"github.com/estia-labs/chatbridge/preferences"
)

// DetailCard builds the full detail view for one item. It is rendered on
// demand from the view_item_details action rather than through the registry.
// The description argument, when non-empty, replaces the item's own
// description (generated descriptions are served from the shared cache).
func DetailCard(it Item, description string, prefs preferences.Record) Card {
	children := []Node{
		detailHeader(it, prefs),
		Divider{Spacing: "md"},
	}

	if it.DefaultImagePath != "" {
		children = append(children,
			Image{Src: it.DefaultImagePath, Alt: displayTitle(it), Height: 400, Fit: "contain", Radius: "lg"},
			Spacer{MinSize: "md"},
		)
	}

	children = append(children, detailPriceBox(it), Spacer{MinSize: "md"})

	if description == "" {
		description = it.Description
	}
	if strings.TrimSpace(description) != "" {
		children = append(children,
			Title{Value: "Description", Size: "lg", Weight: "semibold"},
			Text{Value: description, Size: "md", Color: "secondary"},
			Spacer{MinSize: "md"},
		)
	} else {
		children = append(children, Button{
			Label:     "Generate description",
			IconStart: "sparkles",
			Size:      "sm",
			Variant:   "outline",
			OnClickAction: &Action{
				Type: ActionGenerateDescription,
				Payload: map[string]any{
					"item_id":   it.Key(),
					"item_data": it.RenderData(),
				},
			},
		}, Spacer{MinSize: "md"})
	}

	if badges := amenityBadges(it); len(badges) > 0 {
		children = append(children,
			Title{Value: "Amenities", Size: "lg", Weight: "semibold"},
			Row{Gap: "sm", Wrap: "wrap", Children: badges},
			Spacer{MinSize: "md"},
		)
	}

	if rows := locationRows(it.Address); len(rows) > 0 {
		children = append(children,
			Title{Value: "Location", Size: "lg", Weight: "semibold"},
			Col{Gap: "xs", Children: rows},
			Spacer{MinSize: "md"},
		)
	}

	if rows := extraDetailRows(it); len(rows) > 0 {
		children = append(children,
			Title{Value: "Property Details", Size: "lg", Weight: "semibold"},
			Col{Gap: "2xs", Children: rows},
		)
	}

	return Card{
		Size:     "lg",
		Padding:  "lg",
		Radius:   "xl",
		Children: children,
	}
}

// detailHeader renders the title row with the preference state and a close
// button. Unlike the carousel, the detail view surfaces both favorite and
// hidden state so a favorited-but-hidden item is visible as such.
func detailHeader(it Item, prefs preferences.Record) Node {
	titleCol := []Node{
		Title{Value: displayTitle(it), Size: "xl", Weight: "bold"},
	}
	if it.Code != "" {
		titleCol = append(titleCol, Caption{Value: "Code: " + it.Code, Color: "secondary"})
	}

	controls := []Node{FavoriteButton(it.Key(), prefs.IsFavorite(it.Key()))}
	if prefs.IsHidden(it.Key()) {
		controls = append(controls, Badge{Label: "Hidden", Color: "warning", Variant: "soft", Size: "sm"})
	}
	controls = append(controls, Button{
		Label:         "Close",
		IconStart:     "close",
		Size:          "sm",
		Variant:       "ghost",
		OnClickAction: &Action{Type: ActionCloseDetails, Handler: "client"},
	})

	return Row{
		Gap:     "md",
		Justify: "between",
		Align:   "start",
		Children: []Node{
			Col{Gap: "xs", Flex: 1, Children: titleCol},
			Row{Gap: "sm", Align: "center", Children: controls},
		},
	}
}

func detailPriceBox(it Item) Node {
	var specs []string
	if it.PropertyArea > 0 {
		specs = append(specs, trimFloat(it.PropertyArea)+"sqm")
	}
	if it.NumberOfRooms > 0 {
		specs = append(specs, trimFloat(it.NumberOfRooms)+" rooms")
	}
	if it.NumberOfBathrooms > 0 {
		specs = append(specs, trimFloat(it.NumberOfBathrooms)+" bathrooms")
	}
	if it.Floor != "" {
		specs = append(specs, "Floor "+it.Floor)
	}
	return Box{
		Padding: "md",
		Radius:  "lg",
		Children: []Node{
			Row{
				Gap:     "lg",
				Justify: "between",
				Align:   "center",
				Children: []Node{
					Title{Value: FormatPrice(it.Price), Size: "2xl", Weight: "bold", Color: "primary"},
					Text{Value: strings.Join(specs, " • "), Size: "md", Color: "secondary"},
				},
			},
		},
	}
}

var amenityLabels = []struct {
	key, label, color string
}{
	{"hasPool", "Pool", "success"},
	{"hasGarden", "Garden", "success"},
	{"hasElevator", "Elevator", "info"},
	{"hasAlarm", "Alarm", "warning"},
	{"hasSafetyDoor", "Safety Door", "info"},
	{"internalStaircase", "Internal Stairs", "secondary"},
}

func amenityBadges(it Item) []Node {
	var badges []Node
	for _, a := range amenityLabels {
		if it.Amenities[a.key] {
			badges = append(badges, Badge{Label: a.label, Color: a.color, Variant: "soft", Size: "sm"})
		}
	}
	return badges
}

func locationRows(addr Address) []Node {
	var rows []Node
	add := func(label, value string) {
		if value == "" {
			return
		}
		rows = append(rows, Row{
			Gap:     "md",
			Justify: "between",
			Children: []Node{
				Text{Value: label + ":", Weight: "medium", Color: "secondary"},
				Text{Value: value, Weight: "semibold"},
			},
		})
	}
	add("Area", addr.Prefecture)
	add("City", addr.City)
	add("Postal Code", addr.PostalCode)
	add("Country", addr.Country)
	return rows
}

var extraDetailLabels = []struct {
	key, label string
}{
	{"constructionYear", "Built"},
	{"renovationYear", "Renovated"},
	{"energyClass", "Energy Class"},
	{"heatingType", "Heating"},
	{"heatingControl", "Heating Control"},
	{"numberOfFloors", "Total Floors"},
	{"parkingSpace", "Parking Spaces"},
	{"ownershipType", "Ownership"},
}

func extraDetailRows(it Item) []Node {
	var rows []Node
	for _, d := range extraDetailLabels {
		value := rawScalarString(it.Extra[d.key])
		if value == "" {
			continue
		}
		rows = append(rows, Row{
			Gap:     "md",
			Justify: "between",
			Padding: map[string]string{"y": "2xs"},
			Children: []Node{
				Text{Value: d.label + ":", Weight: "medium", Color: "secondary", Size: "sm"},
				Text{Value: value, Weight: "semibold", Size: "sm"},
			},
		})
	}
	return rows
}
