package cart

import (
	"encoding/json"
	"fmt"
)

// Encode serializes items in the persisted layout.
//
// An empty cart encodes as "[]", never "null".
func Encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// Decode parses the persisted layout and checks the cart invariants.
func Decode(data []byte) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		if _, ok := seen[items[i].ID]; ok {
			return nil, fmt.Errorf("line %d: %w: %q", i, errDuplicateID, items[i].ID)
		}
		seen[items[i].ID] = struct{}{}
	}
	if _, ok := checkedTotal(items); !ok {
		return nil, errTotalOverflow
	}
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}
