package cart

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Cart is the storefront's view of a server cart. Total is always derived
// locally from the items and is never authoritative.
type Cart struct {
	ID        string           `json:"id"`
	Status    enums.CartStatus `json:"status"`
	Items     []Item           `json:"items"`
	Total     decimal.Decimal  `json:"total"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Item is one line of the cart. ID is local when the backend supplies none.
type Item struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"productId"`
	Quantity   int               `json:"quantity"`
	Price      decimal.Decimal   `json:"price"`
	Name       string            `json:"name"`
	Image      string            `json:"image,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ItemInput is the request to add a product; price, name and image are the
// catalog snapshot taken at add time.
type ItemInput struct {
	ProductID  string
	Quantity   int
	Price      decimal.Decimal
	Name       string
	Image      string
	Attributes map[string]string
}

// LineInput is one entry of a batch add sent to the backend.
type LineInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// IsOpen reports whether the cart accepts mutations.
func (c Cart) IsOpen() bool {
	return c.Status.IsOpen()
}

// ItemCount is the number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone returns a deep copy so published snapshots never share backing arrays.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]Item, len(c.Items))
		for i, item := range c.Items {
			out.Items[i] = item.clone()
		}
	}
	return out
}

func (i Item) clone() Item {
	out := i
	if i.Attributes != nil {
		out.Attributes = make(map[string]string, len(i.Attributes))
		for k, v := range i.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
