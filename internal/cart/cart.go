package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when an item is added with a quantity below one.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Product is the catalog view the cart works with. Only id, name and price matter here.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is one distinct product in the cart.
type LineItem struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

func newLineItem(product Product, quantity int) LineItem {
	return LineItem{
		Product:  product,
		Quantity: quantity,
		Amount:   product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Cart is the ordered list of line items for one shopper session.
type Cart struct {
	Items []LineItem `json:"items"`
}

// Total sums the line amounts. It is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// ItemCount sums the line quantities.
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) clone() *Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return &Cart{Items: items}
}

// Snapshot is a detached, read-only copy of a cart with its derived totals.
type Snapshot struct {
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// IsEmpty reports whether the snapshot holds no items.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

func snapshotOf(c *Cart) Snapshot {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Snapshot{
		Items:     items,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}
