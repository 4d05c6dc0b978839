package domain

import "encoding/json"

// CartLine is one entry of the cart. Catalog fields are flattened next to the
// quantity, which is how snapshots store it.
type CartLine struct {
	CatalogItem
	Quantity int
}

func NewCartLine(item CatalogItem) CartLine {
	return CartLine{CatalogItem: item, Quantity: 1}
}

func (l CartLine) MarshalJSON() ([]byte, error) {
	fields := l.CatalogItem.fields()
	fields[keyAmount] = l.Quantity
	return json.Marshal(fields)
}

func (l *CartLine) UnmarshalJSON(data []byte) error {
	var item CatalogItem
	if err := item.UnmarshalJSON(data); err != nil {
		return err
	}
	var quantity struct {
		Amount int `json:"amount"`
	}
	if err := json.Unmarshal(data, &quantity); err != nil {
		return err
	}

	*l = CartLine{CatalogItem: item, Quantity: quantity.Amount}
	return nil
}

func (l CartLine) ItemID() int {
	return l.ID
}

func (l CartLine) Equal(other CartLine) bool {
	return l.Quantity == other.Quantity && l.CatalogItem.Equal(other.CatalogItem)
}

// Cart is the ordered list of lines, in the order they were first added.
// Methods never modify the receiver; updates return a new slice.
type Cart []CartLine

func (c Cart) Index(itemID int) int {
	for i, line := range c {
		if line.ID == itemID {
			return i
		}
	}
	return -1
}

func (c Cart) Line(itemID int) (CartLine, bool) {
	i := c.Index(itemID)
	if i < 0 {
		return CartLine{}, false
	}
	return c[i], true
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// WithQuantity returns a copy of the cart with the quantity of itemID
// replaced. The cart is returned unchanged (as a copy) if the item is absent.
func (c Cart) WithQuantity(itemID, quantity int) Cart {
	out := c.Clone()
	if i := out.Index(itemID); i >= 0 {
		out[i].Quantity = quantity
	}
	return out
}

func (c Cart) Append(line CartLine) Cart {
	out := make(Cart, len(c), len(c)+1)
	copy(out, c)
	return append(out, line)
}

func (c Cart) Without(itemID int) Cart {
	out := make(Cart, 0, len(c))
	for _, line := range c {
		if line.ID != itemID {
			out = append(out, line)
		}
	}
	return out
}

func (c Cart) Equal(other Cart) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if !c[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// TotalQuantity is the number of units across all lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, line := range c {
		total += line.Quantity
	}
	return total
}
