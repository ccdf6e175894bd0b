package layout

import (
	"strings"
	"testing"
)

func TestValidateBagAcceptedKinds(t *testing.T) {
	bag := map[string]interface{}{
		"label":   "Home",
		"visible": true,
		"columns": float64(3),
		"weight":  42,
		"nested": map[string]interface{}{
			"color": "#ff0000",
			"size":  float64(14),
		},
	}
	if err := ValidateBag(bag); err != nil {
		t.Errorf("Expected bag to validate, got: %v", err)
	}
}

func TestValidateBagRejectedKinds(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"array":      {"items": []interface{}{"a", "b"}},
		"null":       {"value": nil},
		"empty key":  {"": "x"},
		"nested bad": {"theme": map[string]interface{}{"palette": []interface{}{1}}},
	}
	for name, bag := range cases {
		err := ValidateBag(bag)
		if err == nil {
			t.Errorf("%s: expected validation error", name)
			continue
		}
		if !strings.HasPrefix(err.Error(), "E_VALIDATION") {
			t.Errorf("%s: expected E_VALIDATION prefix, got: %v", name, err)
		}
	}
}

func TestValidateBagDepthLimit(t *testing.T) {
	bag := map[string]interface{}{"v": "leaf"}
	for i := 0; i < maxBagDepth; i++ {
		bag = map[string]interface{}{"nested": bag}
	}
	if err := ValidateBag(bag); err == nil {
		t.Error("Expected nesting depth error")
	}
}

func TestDocumentValidate(t *testing.T) {
	if err := sampleDoc().Validate(); err != nil {
		t.Errorf("Expected sample document to validate, got: %v", err)
	}

	cases := map[string]*Document{
		"empty instance id": {
			Instances: map[string]Widget{"": {Type: "hero"}},
		},
		"empty widget type": {
			Instances: map[string]Widget{"a": {}},
		},
		"empty geometry ref": {
			Layout: []GridItem{{I: "", W: 1, H: 1}},
		},
		"negative position": {
			Instances: map[string]Widget{"a": {Type: "hero"}},
			Layout:    []GridItem{{I: "a", X: -1, Y: 0, W: 1, H: 1}},
		},
		"zero size": {
			Instances: map[string]Widget{"a": {Type: "hero"}},
			Layout:    []GridItem{{I: "a", W: 0, H: 1}},
		},
		"bad prop bag": {
			Instances: map[string]Widget{"a": {Type: "hero", Props: map[string]interface{}{"x": []interface{}{}}}},
		},
	}
	for name, doc := range cases {
		if err := doc.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
