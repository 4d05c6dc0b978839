package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Stock is the available amount of an item as reported by the inventory.
type Stock struct {
	ItemID int `json:"id"`
	Amount int `json:"amount"`
}

// CatalogItem is the catalog metadata copied into a cart line when it is
// first created. Fields the cart does not know about are kept verbatim in
// Extra and written back out next to the typed ones.
//
// Extra is shared between copies of a line and must not be modified after
// decoding.
type CatalogItem struct {
	ID       int
	Name     string
	Price    decimal.Decimal
	ImageURL string
	Extra    map[string]json.RawMessage
}

const (
	keyID       = "id"
	keyName     = "name"
	keyPrice    = "price"
	keyImageURL = "imageUrl"
	keyAmount   = "amount"

	// older snapshots used the snake_case spelling
	keyImageURLLegacy = "image_url"
)

type catalogFields struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL *string         `json:"imageUrl"`
	Legacy   *string         `json:"image_url"`
}

func (c CatalogItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.fields())
}

func (c *CatalogItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*c = CatalogItem{}
		return nil
	}

	var known catalogFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	item := CatalogItem{ID: known.ID, Name: known.Name, Price: known.Price}
	switch {
	case known.ImageURL != nil:
		item.ImageURL = *known.ImageURL
	case known.Legacy != nil:
		item.ImageURL = *known.Legacy
	}

	for key, value := range raw {
		switch key {
		case keyID, keyName, keyPrice, keyImageURL, keyImageURLLegacy, keyAmount:
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if item.Extra == nil {
			item.Extra = make(map[string]json.RawMessage, len(raw))
		}
		item.Extra[key] = buf.Bytes()
	}

	*c = item
	return nil
}

// fields is the flat JSON object for the item. Typed fields win over Extra
// entries with the same name.
func (c CatalogItem) fields() map[string]any {
	out := make(map[string]any, len(c.Extra)+4)
	for key, value := range c.Extra {
		out[key] = value
	}
	out[keyID] = c.ID
	out[keyName] = c.Name
	out[keyPrice] = c.Price
	out[keyImageURL] = c.ImageURL
	return out
}

func (c CatalogItem) Equal(other CatalogItem) bool {
	if c.ID != other.ID ||
		c.Name != other.Name ||
		!c.Price.Equal(other.Price) ||
		c.ImageURL != other.ImageURL ||
		len(c.Extra) != len(other.Extra) {
		return false
	}
	for key, value := range c.Extra {
		theirs, ok := other.Extra[key]
		if !ok || !bytes.Equal(value, theirs) {
			return false
		}
	}
	return true
}
