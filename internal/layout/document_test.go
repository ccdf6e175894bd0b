package layout

import (
	"testing"
)

func sampleDoc() *Document {
	return &Document{
		Instances: map[string]Widget{
			"hero-1":  {Type: "hero", Props: map[string]interface{}{"headline": "Match day"}},
			"table-1": {Type: "stats-table", Props: map[string]interface{}{"rows": float64(10)}},
		},
		Layout: []GridItem{
			{I: "hero-1", X: 0, Y: 0, W: 12, H: 2},
			{I: "table-1", X: 0, Y: 2, W: 6, H: 4},
		},
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, blob := range [][]byte{nil, {}, []byte("null")} {
		doc, err := Decode(blob)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", blob, err)
		}
		if doc == nil || doc.Instances == nil || doc.Layout == nil {
			t.Errorf("Decode(%q) should yield an empty document, got %+v", blob, doc)
		}
		if len(doc.Instances) != 0 || len(doc.Layout) != 0 {
			t.Errorf("Decode(%q) should yield no content, got %+v", blob, doc)
		}
	}
}

func TestDecodeRoundtrip(t *testing.T) {
	encoded, err := sampleDoc().Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	doc, err := Decode([]byte(encoded))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(doc.Instances) != 2 || len(doc.Layout) != 2 {
		t.Errorf("Roundtrip lost content: %+v", doc)
	}
	if doc.Instances["hero-1"].Type != "hero" {
		t.Errorf("Expected hero widget, got %+v", doc.Instances["hero-1"])
	}
	if doc.Layout[0].W.Int() != 12 {
		t.Errorf("Expected W=12, got %d", doc.Layout[0].W.Int())
	}
}

// Grid coordinates can arrive as JSON strings from browser clients.
func TestDecodeStringCoordinates(t *testing.T) {
	blob := []byte(`{"instances":{"a":{"type":"hero"}},"layout":[{"i":"a","x":"0","y":"1","w":"6","h":"2"}]}`)

	doc, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	item := doc.Layout[0]
	if item.X.Int() != 0 || item.Y.Int() != 1 || item.W.Int() != 6 || item.H.Int() != 2 {
		t.Errorf("String coordinates decoded wrong: %+v", item)
	}
}

// The dirty comparison and no-op suppression depend on equal documents always
// encoding to the same string.
func TestEncodeDeterministic(t *testing.T) {
	a := sampleDoc()

	// Same content, different construction order
	b := Empty()
	b.Instances["table-1"] = Widget{Type: "stats-table", Props: map[string]interface{}{"rows": float64(10)}}
	b.Instances["hero-1"] = Widget{Type: "hero", Props: map[string]interface{}{"headline": "Match day"}}
	b.Layout = []GridItem{
		{I: "hero-1", X: 0, Y: 0, W: 12, H: 2},
		{I: "table-1", X: 0, Y: 2, W: 6, H: 4},
	}

	ea, err := a.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	eb, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if ea != eb {
		t.Errorf("Equal documents encoded differently:\n%s\n%s", ea, eb)
	}
}

func TestCloneIsolation(t *testing.T) {
	original := sampleDoc()
	clone := original.Clone()

	clone.Instances["hero-1"] = Widget{Type: "banner"}
	clone.Layout[0].W = 1
	props := clone.Instances["table-1"].Props
	props["rows"] = float64(99)

	if original.Instances["hero-1"].Type != "hero" {
		t.Error("Clone mutation leaked into original instances")
	}
	if original.Layout[0].W.Int() != 12 {
		t.Error("Clone mutation leaked into original geometry")
	}
	if original.Instances["table-1"].Props["rows"] != float64(10) {
		t.Error("Clone mutation leaked into original props")
	}
}
