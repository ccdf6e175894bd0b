package layout

import (
	"fmt"
)

// maxBagDepth bounds nested property maps so a hostile payload cannot recurse
// unboundedly through validation.
const maxBagDepth = 8

// ValidateBag checks a free-form property bag against the closed kind set:
// string, number, boolean, or a nested string-keyed map of the same kinds.
// Arrays and null values are rejected before they reach the database.
func ValidateBag(bag map[string]interface{}) error {
	return validateBag(bag, 0)
}

func validateBag(bag map[string]interface{}, depth int) error {
	if depth >= maxBagDepth {
		return fmt.Errorf("E_VALIDATION - property bag nesting exceeds %d levels", maxBagDepth)
	}
	for key, value := range bag {
		if key == "" {
			return fmt.Errorf("E_VALIDATION - empty property key")
		}
		switch v := value.(type) {
		case string, bool:
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		case map[string]interface{}:
			if err := validateBag(v, depth+1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("E_VALIDATION - property %q has unsupported kind %T", key, value)
		}
	}
	return nil
}

// Validate checks a document before it is written: instance identifiers and
// widget types must be non-empty, property bags must pass ValidateBag, and
// geometry must be non-negative with positive extents. Orphan geometry is not
// an error here; see Analyze.
func (d *Document) Validate() error {
	for id, w := range d.Instances {
		if id == "" {
			return fmt.Errorf("E_VALIDATION - empty instance identifier")
		}
		if w.Type == "" {
			return fmt.Errorf("E_VALIDATION - instance %q has no widget type", id)
		}
		if err := ValidateBag(w.Props); err != nil {
			return fmt.Errorf("instance %q: %w", id, err)
		}
	}
	for _, item := range d.Layout {
		if item.I == "" {
			return fmt.Errorf("E_VALIDATION - geometry record with empty instance reference")
		}
		if item.X < 0 || item.Y < 0 {
			return fmt.Errorf("E_VALIDATION - geometry %q has negative position", item.I)
		}
		if item.W < 1 || item.H < 1 {
			return fmt.Errorf("E_VALIDATION - geometry %q has non-positive size", item.I)
		}
	}
	return nil
}
