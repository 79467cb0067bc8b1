package render

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldKey selects what a template field renders.
type FieldKey string

const (
	FieldName   FieldKey = "name"
	FieldEvent  FieldKey = "event"
	FieldNumber FieldKey = "number"
	FieldToken  FieldKey = "token"
	FieldDate   FieldKey = "date"
	FieldLabel  FieldKey = "label"
)

var validKeys = map[FieldKey]struct{}{
	FieldName:   {},
	FieldEvent:  {},
	FieldNumber: {},
	FieldToken:  {},
	FieldDate:   {},
	FieldLabel:  {},
}

// Field is one positioned, styled piece of content on a template. X and Y
// are design-space pixels with a top-left origin, captured against the
// template's recorded image size.
type Field struct {
	Key        FieldKey `json:"key"`
	Label      string   `json:"label,omitempty"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	FontFamily string   `json:"font_family,omitempty"`
	FontSize   float64  `json:"font_size"`
	Bold       bool     `json:"bold,omitempty"`
	Italic     bool     `json:"italic,omitempty"`
	Color      string   `json:"color,omitempty"`
	Active     bool     `json:"active"`
}

// DecodeFields parses a template's stored field list, rejecting unknown JSON
// keys and unknown field kinds at the boundary instead of letting loosely
// shaped data reach the renderer. Positions are checked against the
// template's own recorded size.
func DecodeFields(raw []byte, source Size) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var fields []Field
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode template fields: %w", err)
	}

	for i, f := range fields {
		if _, ok := validKeys[f.Key]; !ok {
			return nil, fmt.Errorf("field %d: unknown key %q", i, f.Key)
		}
		if f.FontSize < 0 {
			return nil, fmt.Errorf("field %d (%s): negative font size", i, f.Key)
		}
		if !InBounds(Point{X: f.X, Y: f.Y}, source) {
			return nil, fmt.Errorf("field %d (%s): position (%.1f, %.1f) outside template %gx%g",
				i, f.Key, f.X, f.Y, source.W, source.H)
		}
	}
	return fields, nil
}
