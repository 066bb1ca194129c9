package components

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type (
	// Item is a structured result entry as delivered by the agent API.
	// Known fields are typed; everything else round-trips through Extra so
	// fields this service does not interpret are preserved in snapshots and
	// detail views.
	Item struct {
		ID                string
		Code              string
		Title             string
		Description       string
		Price             float64
		PropertyArea      float64
		NumberOfRooms     float64
		NumberOfBathrooms float64
		Floor             string
		DefaultImagePath  string
		Address           Address
		Amenities         map[string]bool
		Extra             map[string]json.RawMessage
	}

	// Address holds the location fields of an item.
	Address struct {
		Prefecture string `json:"prefecture,omitempty"`
		City       string `json:"city,omitempty"`
		PostalCode string `json:"postalCode,omitempty"`
		Country    string `json:"country,omitempty"`
		GeoPoint   GeoRef `json:"geoPoint,omitempty"`
	}

	// GeoRef is a coordinate pair normalized to the upstream "lat,lng"
	// string form. It decodes from either that string or a GeoJSON point,
	// so items round-trip through widget action payloads unharmed.
	GeoRef string

	// GeoPoint is the GeoJSON form of a coordinate pair. Coordinates are
	// longitude first, per the GeoJSON spec.
	GeoPoint struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}
)

// Key returns the item's stable identifier: the code when present, the raw
// id otherwise.
func (it Item) Key() string {
	if it.Code != "" {
		return it.Code
	}
	return it.ID
}

// itemJSON mirrors Item's known fields for (un)marshaling.
type itemJSON struct {
	ID                string          `json:"id,omitempty"`
	Code              string          `json:"code,omitempty"`
	Title             string          `json:"title,omitempty"`
	Description       string          `json:"description,omitempty"`
	Price             float64         `json:"price,omitempty"`
	PropertyArea      float64         `json:"propertyArea,omitempty"`
	NumberOfRooms     float64         `json:"numberOfRooms,omitempty"`
	NumberOfBathrooms float64         `json:"numberOfBathrooms,omitempty"`
	Floor             json.RawMessage `json:"floor,omitempty"`
	DefaultImagePath  string          `json:"defaultImagePath,omitempty"`
	Address           *Address        `json:"address,omitempty"`
	Amenities         map[string]bool `json:"amenities,omitempty"`
}

var itemKnownFields = map[string]bool{
	"id": true, "code": true, "title": true, "description": true,
	"price": true, "propertyArea": true, "numberOfRooms": true,
	"numberOfBathrooms": true, "floor": true, "defaultImagePath": true,
	"address": true, "amenities": true,
}

// UnmarshalJSON decodes known fields into their typed slots and keeps every
// other field verbatim in Extra.
func (it *Item) UnmarshalJSON(data []byte) error {
	var known itemJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	it.ID = known.ID
	it.Code = known.Code
	it.Title = known.Title
	it.Description = known.Description
	it.Price = known.Price
	it.PropertyArea = known.PropertyArea
	it.NumberOfRooms = known.NumberOfRooms
	it.NumberOfBathrooms = known.NumberOfBathrooms
	it.Floor = rawScalarString(known.Floor)
	it.DefaultImagePath = known.DefaultImagePath
	if known.Address != nil {
		it.Address = *known.Address
	}
	it.Amenities = known.Amenities

	it.Extra = nil
	for k, v := range all {
		if itemKnownFields[k] {
			continue
		}
		if it.Extra == nil {
			it.Extra = make(map[string]json.RawMessage)
		}
		it.Extra[k] = v
	}
	return nil
}

// MarshalJSON emits the known fields merged with Extra; known fields win on
// key collision.
func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Extra)+12)
	for k, v := range it.Extra {
		out[k] = v
	}
	known := itemJSON{
		ID:                it.ID,
		Code:              it.Code,
		Title:             it.Title,
		Description:       it.Description,
		Price:             it.Price,
		PropertyArea:      it.PropertyArea,
		NumberOfRooms:     it.NumberOfRooms,
		NumberOfBathrooms: it.NumberOfBathrooms,
		DefaultImagePath:  it.DefaultImagePath,
		Amenities:         it.Amenities,
	}
	if it.Floor != "" {
		known.Floor = json.RawMessage(strconv.Quote(it.Floor))
	}
	if it.Address != (Address{}) {
		known.Address = &it.Address
	}
	kb, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	var km map[string]json.RawMessage
	if err := json.Unmarshal(kb, &km); err != nil {
		return nil, err
	}
	for k, v := range km {
		out[k] = v
	}
	return json.Marshal(out)
}

// rawScalarString renders a raw JSON scalar as display text: strings are
// unquoted, numbers and booleans kept verbatim, everything else dropped.
func rawScalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	t := strings.TrimSpace(string(raw))
	if t == "null" || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		return ""
	}
	return t
}

// UnmarshalJSON accepts "lat,lng" strings and GeoJSON points.
func (g *GeoRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*g = GeoRef(s)
		return nil
	}
	var p GeoPoint
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid geo point: %w", err)
	}
	*g = GeoRef(p.LatLng())
	return nil
}

// GeoJSON returns the GeoJSON point form of the reference.
func (g GeoRef) GeoJSON() (GeoPoint, error) {
	return ParseGeoPoint(string(g))
}

// RenderData returns the item's wire form for embedding in widget action
// payloads: identical to the item's JSON except the address geoPoint is
// expanded into its GeoJSON point. An unparsable geoPoint is left as-is.
func (it Item) RenderData() map[string]any {
	b, err := json.Marshal(it)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	if it.Address.GeoPoint == "" {
		return out
	}
	p, err := it.Address.GeoPoint.GeoJSON()
	if err != nil {
		return out
	}
	if addr, ok := out["address"].(map[string]any); ok {
		addr["geoPoint"] = map[string]any{
			"type":        p.Type,
			"coordinates": []float64{p.Coordinates[0], p.Coordinates[1]},
		}
	}
	return out
}

// ParseGeoPoint converts the upstream "lat,lng" string into its GeoJSON
// point. GeoJSON orders coordinates longitude first, so the pair is swapped:
// "37.9,23.7" becomes [23.7, 37.9].
func ParseGeoPoint(s string) (GeoPoint, error) {
	lat, lng, err := splitLatLng(s)
	if err != nil {
		return GeoPoint{}, err
	}
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}, nil
}

// LatLng renders the point back into the upstream "lat,lng" wire form.
func (p GeoPoint) LatLng() string {
	return trimFloat(p.Coordinates[1]) + "," + trimFloat(p.Coordinates[0])
}

func splitLatLng(s string) (lat, lng float64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid coordinate pair %q", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	return lat, lng, nil
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatPrice renders a price with a euro sign and thousands separators, or
// a placeholder when unset.
func FormatPrice(price float64) string {
	if price <= 0 {
		return "Price on request"
	}
	return "€" + groupThousands(int64(price))
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// Specs renders the "224sqm • 4 rooms • 1 bath" summary line, omitting
// unset fields.
func (it Item) Specs() string {
	var parts []string
	if it.PropertyArea > 0 {
		parts = append(parts, trimFloat(it.PropertyArea)+"sqm")
	}
	if it.NumberOfRooms > 0 {
		parts = append(parts, trimFloat(it.NumberOfRooms)+" rooms")
	}
	if it.NumberOfBathrooms > 0 {
		parts = append(parts, trimFloat(it.NumberOfBathrooms)+" bath")
	}
	return strings.Join(parts, " • ")
}
