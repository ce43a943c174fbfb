package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListProducts returns catalog entries. Grouped variants other than the
// group's main product are filtered out, matching the storefront listing.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	payload, err := c.call(ctx, opListProducts, http.MethodGet, c.storeURL("catalog"), q.values(), nil)
	if err != nil {
		return nil, err
	}
	var wire []wireProduct
	if err := decodeInto(payload, &wire); err != nil {
		return nil, c.fail(ctx, opListProducts, err)
	}
	products := make([]Product, 0, len(wire))
	for _, w := range wire {
		p := toProduct(w)
		if p.IsVariant {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// GetProduct returns one catalog entry.
func (c *Client) GetProduct(ctx context.Context, productID string) (Product, error) {
	ctx = c.logg.WithField(ctx, "product_id", productID)
	payload, err := c.call(ctx, opGetProduct, http.MethodGet, c.storeURL("catalog", productID), nil, nil)
	if err != nil {
		return Product{}, err
	}
	var w wireProduct
	if err := decodeInto(payload, &w); err != nil {
		return Product{}, c.fail(ctx, opGetProduct, err)
	}
	if w.ID == "" {
		w.ID = productID
	}
	return toProduct(w), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	payload, err := c.call(ctx, opListCategories, http.MethodGet, c.storeURL("categories"), nil, nil)
	if err != nil {
		return nil, err
	}
	var wire []wireCategory
	if err := decodeInto(payload, &wire); err != nil {
		return nil, c.fail(ctx, opListCategories, err)
	}
	categories := make([]Category, 0, len(wire))
	for _, w := range wire {
		categories = append(categories, toCategory(w))
	}
	return categories, nil
}

// GetCategory accepts either a single category or the localization list the
// API returns for it, in which case the first entry wins.
func (c *Client) GetCategory(ctx context.Context, categoryID string) (Category, error) {
	ctx = c.logg.WithField(ctx, "category_id", categoryID)
	payload, err := c.call(ctx, opGetCategory, http.MethodGet, c.storeURL("categories", categoryID), nil, nil)
	if err != nil {
		return Category{}, err
	}
	raw, err := unwrap(payload)
	if err != nil {
		return Category{}, c.fail(ctx, opGetCategory, err)
	}
	var w wireCategory
	if len(raw) > 0 && raw[0] == '[' {
		var list []wireCategory
		if err := json.Unmarshal(raw, &list); err != nil {
			return Category{}, c.fail(ctx, opGetCategory, fmt.Errorf("decoding response: %w", err))
		}
		if len(list) > 0 {
			w = list[0]
		}
	} else if err := json.Unmarshal(raw, &w); err != nil {
		return Category{}, c.fail(ctx, opGetCategory, fmt.Errorf("decoding response: %w", err))
	}
	category := toCategory(w)
	if category.ID == "" {
		category.ID = categoryID
	}
	return category, nil
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Featured {
		v.Set("featured", "true")
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}
