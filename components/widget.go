// Package components synthesizes UI widget trees from structured turn
// payloads. A registry of priority-ordered rules inspects each payload and
// renders zero or more widgets; rendering is pure and applies the viewer's
// preferences at render time, so the same stored payload can produce
// different widgets as preferences change.
package components

import (
	"encoding/json"
	"fmt"
)

type (
	// Node is a serializable widget tree node. Concrete nodes marshal
	// themselves with a "type" discriminator so the front end can
	// reconstruct the tree.
	Node interface {
		node()
	}

	// Action configures what happens when a widget is activated. Actions
	// without a Handler are dispatched to the server; Handler "client" keeps
	// the interaction in the front end.
	Action struct {
		Type    string         `json:"type"`
		Handler string         `json:"handler,omitempty"`
		Payload map[string]any `json:"payload,omitempty"`
	}

	// Card is the top-level container emitted by renderers.
	Card struct {
		Size       string `json:"size,omitempty"`
		Padding    any    `json:"padding,omitempty"`
		Background any    `json:"background,omitempty"`
		Border     any    `json:"border,omitempty"`
		Radius     string `json:"radius,omitempty"`
		Children   []Node `json:"children,omitempty"`
	}

	// ListView lays out items vertically with built-in "show more" past
	// Limit entries.
	ListView struct {
		Limit    int    `json:"limit,omitempty"`
		Children []Node `json:"children,omitempty"`
	}

	// ListViewItem is a single entry of a ListView.
	ListViewItem struct {
		Key           string  `json:"key,omitempty"`
		Gap           any     `json:"gap,omitempty"`
		Align         string  `json:"align,omitempty"`
		OnClickAction *Action `json:"onClickAction,omitempty"`
		Children      []Node  `json:"children,omitempty"`
	}

	// Row lays out children horizontally.
	Row struct {
		Gap      any    `json:"gap,omitempty"`
		Align    string `json:"align,omitempty"`
		Justify  string `json:"justify,omitempty"`
		Wrap     string `json:"wrap,omitempty"`
		Padding  any    `json:"padding,omitempty"`
		Children []Node `json:"children,omitempty"`
	}

	// Col lays out children vertically.
	Col struct {
		Gap      any    `json:"gap,omitempty"`
		Align    string `json:"align,omitempty"`
		Flex     int    `json:"flex,omitempty"`
		Children []Node `json:"children,omitempty"`
	}

	// Box is a generic styled container.
	Box struct {
		Direction     string  `json:"direction,omitempty"`
		Wrap          string  `json:"wrap,omitempty"`
		Gap           any     `json:"gap,omitempty"`
		Padding       any     `json:"padding,omitempty"`
		Background    any     `json:"background,omitempty"`
		Border        any     `json:"border,omitempty"`
		Radius        string  `json:"radius,omitempty"`
		MinWidth      any     `json:"minWidth,omitempty"`
		MaxWidth      any     `json:"maxWidth,omitempty"`
		Cursor        string  `json:"cursor,omitempty"`
		OnClickAction *Action `json:"onClickAction,omitempty"`
		Children      []Node  `json:"children,omitempty"`
	}

	// Text renders body text.
	Text struct {
		Value    string `json:"value"`
		Size     string `json:"size,omitempty"`
		Weight   string `json:"weight,omitempty"`
		Color    string `json:"color,omitempty"`
		MaxLines int    `json:"maxLines,omitempty"`
		Truncate bool   `json:"truncate,omitempty"`
		Padding  any    `json:"padding,omitempty"`
	}

	// Title renders heading text.
	Title struct {
		Value  string `json:"value"`
		Size   string `json:"size,omitempty"`
		Weight string `json:"weight,omitempty"`
		Color  string `json:"color,omitempty"`
	}

	// Caption renders secondary text.
	Caption struct {
		Value    string `json:"value"`
		Size     string `json:"size,omitempty"`
		Color    string `json:"color,omitempty"`
		MaxLines int    `json:"maxLines,omitempty"`
		Truncate bool   `json:"truncate,omitempty"`
		Padding  any    `json:"padding,omitempty"`
	}

	// Badge renders a small labeled pill.
	Badge struct {
		Label   string `json:"label"`
		Color   string `json:"color,omitempty"`
		Size    string `json:"size,omitempty"`
		Variant string `json:"variant,omitempty"`
	}

	// Button renders an activatable control.
	Button struct {
		Label         string  `json:"label"`
		IconStart     string  `json:"iconStart,omitempty"`
		IconEnd       string  `json:"iconEnd,omitempty"`
		Size          string  `json:"size,omitempty"`
		Variant       string  `json:"variant,omitempty"`
		Color         string  `json:"color,omitempty"`
		Block         bool    `json:"block,omitempty"`
		OnClickAction *Action `json:"onClickAction,omitempty"`
	}

	// Image renders an image.
	Image struct {
		Src    string `json:"src"`
		Alt    string `json:"alt,omitempty"`
		Height int    `json:"height,omitempty"`
		Fit    string `json:"fit,omitempty"`
		Radius string `json:"radius,omitempty"`
		Flush  bool   `json:"flush,omitempty"`
	}

	// Icon renders a named icon.
	Icon struct {
		Name  string `json:"name"`
		Size  string `json:"size,omitempty"`
		Color string `json:"color,omitempty"`
	}

	// Spacer inserts flexible space.
	Spacer struct {
		MinSize any `json:"minSize,omitempty"`
	}

	// Divider inserts a horizontal rule.
	Divider struct {
		Spacing string `json:"spacing,omitempty"`
	}
)

func (Card) node()         {}
func (ListView) node()     {}
func (ListViewItem) node() {}
func (Row) node()          {}
func (Col) node()          {}
func (Box) node()          {}
func (Text) node()         {}
func (Title) node()        {}
func (Caption) node()      {}
func (Badge) node()        {}
func (Button) node()       {}
func (Image) node()        {}
func (Icon) node()         {}
func (Spacer) node()       {}
func (Divider) node()      {}

// withType marshals v and prepends a "type" discriminator field. v must
// marshal to a JSON object.
func withType(kind string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	if len(b) < 2 || b[0] != '{' {
		return nil, fmt.Errorf("marshal %s: not an object", kind)
	}
	head := []byte(`{"type":"` + kind + `"`)
	if len(b) > 2 {
		head = append(head, ',')
	}
	return append(head, b[1:]...), nil
}

func (n Card) MarshalJSON() ([]byte, error) {
	type alias Card
	return withType("Card", alias(n))
}

func (n ListView) MarshalJSON() ([]byte, error) {
	type alias ListView
	return withType("ListView", alias(n))
}

func (n ListViewItem) MarshalJSON() ([]byte, error) {
	type alias ListViewItem
	return withType("ListViewItem", alias(n))
}

func (n Row) MarshalJSON() ([]byte, error) {
	type alias Row
	return withType("Row", alias(n))
}

func (n Col) MarshalJSON() ([]byte, error) {
	type alias Col
	return withType("Col", alias(n))
}

func (n Box) MarshalJSON() ([]byte, error) {
	type alias Box
	return withType("Box", alias(n))
}

func (n Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return withType("Text", alias(n))
}

func (n Title) MarshalJSON() ([]byte, error) {
	type alias Title
	return withType("Title", alias(n))
}

func (n Caption) MarshalJSON() ([]byte, error) {
	type alias Caption
	return withType("Caption", alias(n))
}

func (n Badge) MarshalJSON() ([]byte, error) {
	type alias Badge
	return withType("Badge", alias(n))
}

func (n Button) MarshalJSON() ([]byte, error) {
	type alias Button
	return withType("Button", alias(n))
}

func (n Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return withType("Image", alias(n))
}

func (n Icon) MarshalJSON() ([]byte, error) {
	type alias Icon
	return withType("Icon", alias(n))
}

func (n Spacer) MarshalJSON() ([]byte, error) {
	type alias Spacer
	return withType("Spacer", alias(n))
}

func (n Divider) MarshalJSON() ([]byte, error) {
	type alias Divider
	return withType("Divider", alias(n))
}

// FavoriteButton builds the star toggle for an item. The action is handled
// server-side: the backend updates preferences and re-renders.
func FavoriteButton(code string, favorited bool) Button {
	icon, color := "star", "secondary"
	if favorited {
		icon, color = "star-filled", "warning"
	}
	return Button{
		IconStart: icon,
		Size:      "xs",
		Variant:   "ghost",
		Color:     color,
		OnClickAction: &Action{
			Type:    ActionToggleFavorite,
			Payload: map[string]any{"propertyCode": code},
		},
	}
}

// HideButton builds the hide toggle for an item. Handled server-side.
func HideButton(code string) Button {
	return Button{
		IconStart: "empty-circle",
		Size:      "xs",
		Variant:   "ghost",
		Color:     "secondary",
		OnClickAction: &Action{
			Type:    ActionHideProperty,
			Payload: map[string]any{"propertyCode": code},
		},
	}
}

// Action types dispatched by built-in widgets.
const (
	ActionToggleFavorite      = "toggle_favorite"
	ActionHideProperty        = "hide_property"
	ActionViewItemDetails     = "view_item_details"
	ActionSaveSearch          = "save_search"
	ActionGenerateDescription = "generate_description"
	ActionCloseDetails        = "close_details"
)
