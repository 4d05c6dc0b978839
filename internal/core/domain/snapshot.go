package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

// MarshalSnapshot encodes the full cart. An empty cart encodes as "[]".
func MarshalSnapshot(cart Cart) ([]byte, error) {
	if cart == nil {
		cart = Cart{}
	}
	return json.Marshal(cart)
}

// UnmarshalSnapshot decodes a snapshot and rejects carts that break the
// one-line-per-item or positive-quantity rules.
func UnmarshalSnapshot(data []byte) (Cart, error) {
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if cart == nil {
		return Cart{}, nil
	}

	seen := make(map[int]struct{}, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d has quantity %d", ErrInvalidSnapshot, line.ID, line.Quantity)
		}
		if _, dup := seen[line.ID]; dup {
			return nil, fmt.Errorf("%w: item %d appears more than once", ErrInvalidSnapshot, line.ID)
		}
		seen[line.ID] = struct{}{}
	}

	return cart, nil
}
