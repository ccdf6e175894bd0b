// Package layout defines the page layout document: the set of widget
// instances on a page and their grid geometry, stored as one JSON blob on the
// page_layouts table.
package layout

import (
	"encoding/json"

	"github.com/Hampilk/trebujton-sub000/internal/types"
)

// Widget describes one widget instance: a widget-type tag plus a free-form
// property bag. Props values are restricted to a closed set of kinds, see
// ValidateBag.
type Widget struct {
	Type  string                 `json:"type"`
	Props map[string]interface{} `json:"props,omitempty"`
}

// GridItem is one geometry record of the grid editor. The short JSON keys
// match the react-grid-layout wire shape.
type GridItem struct {
	I string        `json:"i"`
	X types.FlexInt `json:"x"`
	Y types.FlexInt `json:"y"`
	W types.FlexInt `json:"w"`
	H types.FlexInt `json:"h"`
}

// Document is the layout document for one page. Every GridItem should
// reference a key in Instances and every instance should have exactly one
// GridItem; violations are tolerated and reported by Analyze, never fatal.
type Document struct {
	Instances map[string]Widget `json:"instances"`
	Layout    []GridItem        `json:"layout"`
}

// Empty returns a document with no instances and no geometry.
func Empty() *Document {
	return &Document{
		Instances: make(map[string]Widget),
		Layout:    []GridItem{},
	}
}

// Decode parses a layout JSON blob into a Document. A nil or empty blob
// decodes to an empty document.
func Decode(data []byte) (*Document, error) {
	if len(data) == 0 || string(data) == "null" {
		return Empty(), nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Instances == nil {
		doc.Instances = make(map[string]Widget)
	}
	if doc.Layout == nil {
		doc.Layout = []GridItem{}
	}
	return &doc, nil
}

// Encode serializes the document to its canonical JSON form. Map keys are
// emitted sorted, so equal documents always encode to equal strings; the
// store's dirty comparison and the autosave no-op suppression rely on this.
func (d *Document) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Clone returns a deep copy of the document. Props maps are copied one level
// at a time so a caller mutating the clone cannot leak into the original.
func (d *Document) Clone() *Document {
	out := &Document{
		Instances: make(map[string]Widget, len(d.Instances)),
		Layout:    make([]GridItem, len(d.Layout)),
	}
	for id, w := range d.Instances {
		out.Instances[id] = Widget{Type: w.Type, Props: cloneBag(w.Props)}
	}
	copy(out.Layout, d.Layout)
	return out
}

func cloneBag(bag map[string]interface{}) map[string]interface{} {
	if bag == nil {
		return nil
	}
	out := make(map[string]interface{}, len(bag))
	for k, v := range bag {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneBag(nested)
		} else {
			out[k] = v
		}
	}
	return out
}
