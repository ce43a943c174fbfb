package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pure cart arithmetic. Every function returns a new Cart and leaves its
// input untouched.

// newItemID is swapped in tests for deterministic ids.
var newItemID = uuid.NewString

// RecomputeTotal sets Total to the sum of price times quantity.
func RecomputeTotal(c Cart) Cart {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.Total = total
	return c
}

// FindItem returns the index of the line with the given item id, or -1.
func FindItem(c Cart, itemID string) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// FindProduct returns the index of the line holding productID, or -1.
func FindProduct(c Cart, productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// MergeAdd adds input to the cart. An existing line for the same product has
// its quantity increased; otherwise a new line with a fresh id is appended.
// It reports the resulting line.
func MergeAdd(c Cart, input ItemInput) (Cart, Item, bool) {
	out := c.Clone()
	if idx := FindProduct(out, input.ProductID); idx >= 0 {
		out.Items[idx].Quantity += input.Quantity
		return RecomputeTotal(out), out.Items[idx], true
	}
	item := Item{
		ID:         newItemID(),
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		Price:      input.Price,
		Name:       input.Name,
		Image:      input.Image,
		Attributes: copyAttributes(input.Attributes),
	}
	out.Items = append(out.Items, item)
	return RecomputeTotal(out), item, false
}

// RemoveItem drops the line with itemID.
func RemoveItem(c Cart, itemID string) Cart {
	out := c.Clone()
	kept := make([]Item, 0, len(out.Items))
	for _, item := range out.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	out.Items = kept
	return RecomputeTotal(out)
}

// SetQuantity sets an absolute quantity; zero or less removes the line.
func SetQuantity(c Cart, itemID string, quantity int) Cart {
	if quantity <= 0 {
		return RemoveItem(c, itemID)
	}
	out := c.Clone()
	if idx := FindItem(out, itemID); idx >= 0 {
		out.Items[idx].Quantity = quantity
	}
	return RecomputeTotal(out)
}

// Empty removes every line.
func Empty(c Cart) Cart {
	out := c.Clone()
	out.Items = []Item{}
	out.Total = decimal.Zero
	return out
}

// ProductIDs lists the product of every line in order.
func ProductIDs(c Cart) []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Reconcile adopts a freshly fetched cart. Lines the backend returned
// without an id keep the local id of the same product, or get a new one.
func Reconcile(local, fetched Cart) Cart {
	out := fetched.Clone()
	for i, item := range out.Items {
		if item.ID != "" {
			continue
		}
		if idx := FindProduct(local, item.ProductID); idx >= 0 && local.Items[idx].ID != "" {
			out.Items[i].ID = local.Items[idx].ID
			continue
		}
		out.Items[i].ID = newItemID()
	}
	if out.Items == nil {
		out.Items = []Item{}
	}
	return RecomputeTotal(out)
}

func copyAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
