package commerce

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

const retailPriceType = "retail"

// unwrap accepts both the enveloped {success,data,error} shape and a bare
// resource, returning the resource bytes.
func unwrap(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	_, hasSuccess := probe["success"]
	_, hasData := probe["data"]
	if !hasSuccess || !hasData {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		msg := "request was not successful"
		if env.Error != nil && *env.Error != "" {
			msg = *env.Error
		}
		return nil, errors.New(msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.New("response has no data")
	}
	return env.Data, nil
}

func decodeInto(body []byte, dest any) error {
	raw, err := unwrap(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeCart(body []byte) (cart.Cart, error) {
	var w wireCart
	if err := decodeInto(body, &w); err != nil {
		return cart.Cart{}, err
	}
	if w.ID == "" {
		return cart.Cart{}, errors.New("response has no cart id")
	}
	return toCart(w), nil
}

// toCart is a total mapping from the wire cart. Missing nested data maps to
// defaults, duplicate product lines are merged and zero quantities dropped.
// Item ids the backend does not supply are left empty for the engine to assign.
func toCart(w wireCart) cart.Cart {
	lines := w.Items
	if len(lines) == 0 {
		lines = w.CommerceCartItems
	}

	out := cart.Cart{
		ID:        w.ID,
		Status:    enums.NormalizeCartStatus(w.Status),
		Items:     make([]cart.Item, 0, len(lines)),
		CreatedAt: parseTime(w.CreatedAt),
		UpdatedAt: parseTime(w.UpdatedAt),
	}
	for _, line := range lines {
		item := toItem(line)
		if item.ProductID == "" || item.Quantity <= 0 {
			continue
		}
		if idx := cart.FindProduct(out, item.ProductID); idx >= 0 {
			out.Items[idx].Quantity += item.Quantity
			continue
		}
		out.Items = append(out.Items, item)
	}
	return cart.RecomputeTotal(out)
}

func toItem(w wireCartItem) cart.Item {
	item := cart.Item{
		ID:         w.ID,
		ProductID:  w.ProductID,
		Quantity:   w.Qty,
		Name:       w.Name,
		Image:      w.Image,
		Attributes: w.Attributes,
	}
	if w.Price != nil {
		item.Price = *w.Price
	}
	if p := w.CommerceProduct; p != nil {
		if item.ProductID == "" {
			item.ProductID = p.ID
		}
		if w.Price == nil {
			item.Price, _, _ = retailPrice(p.Prices)
		}
		if item.Name == "" {
			item.Name = productName(p.Localizations)
		}
		if item.Image == "" {
			item.Image = firstImage(p.Images)
		}
	}
	return item
}

func toProduct(w wireProduct) Product {
	price, discount, currency := retailPrice(w.Prices)
	images := imageURLs(w.Images)
	p := Product{
		ID:       w.ID,
		Type:     w.Type,
		Name:     productName(w.Localizations),
		Price:    price,
		Discount: discount,
		Currency: currency,
		Images:   images,
	}
	if w.SKU != nil {
		p.SKU = *w.SKU
	}
	if len(w.Localizations) > 0 {
		p.Slug = w.Localizations[0].Slug
	}
	if len(images) > 0 {
		p.Image = images[0]
	}
	for _, c := range w.Categories {
		if c.CategoryID != "" {
			p.CategoryIDs = append(p.CategoryIDs, c.CategoryID)
		}
	}
	if len(w.Groups) > 0 {
		p.GroupID = w.Groups[0].GroupID
		p.IsVariant = true
		for _, g := range w.Groups {
			if g.IsMain {
				p.IsVariant = false
				break
			}
		}
	}
	stock := decimal.Zero
	for _, inv := range w.Inventories {
		stock = stock.Add(inv.Value)
	}
	p.InStock = len(w.Inventories) == 0 || stock.IsPositive()
	return p
}

func toCategory(w wireCategory) Category {
	id := w.CategoryID
	if id == "" {
		id = w.ID
	}
	return Category{
		ID:          id,
		Name:        w.Name,
		Slug:        w.Slug,
		Description: w.Description,
		ParentID:    w.ParentID,
	}
}

func toOrderResult(w wireOrder) OrderResult {
	id := w.ID
	if id == "" {
		id = w.OrderID
	}
	return OrderResult{
		OrderID: id,
		Folio:   w.Folio,
		Status:  w.Status,
		Total:   w.Total,
	}
}

// retailPrice picks the retail entry, falling back to the first price.
func retailPrice(prices []wirePrice) (price, discount decimal.Decimal, currency string) {
	if len(prices) == 0 {
		return decimal.Zero, decimal.Zero, ""
	}
	chosen := prices[0]
	for _, p := range prices {
		if strings.EqualFold(p.Type, retailPriceType) {
			chosen = p
			break
		}
	}
	if chosen.Discount != nil {
		discount = *chosen.Discount
	}
	if chosen.CoreCurrency != nil {
		currency = chosen.CoreCurrency.Code
	}
	return chosen.Value, discount, currency
}

func productName(locs []wireLocalization) string {
	if len(locs) == 0 {
		return ""
	}
	return locs[0].Name
}

func firstImage(images []wireProductImage) string {
	urls := imageURLs(images)
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

func imageURLs(images []wireProductImage) []string {
	sorted := make([]wireProductImage, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	urls := make([]string, 0, len(sorted))
	for _, img := range sorted {
		if img.MediaFile != nil && img.MediaFile.URL != "" {
			urls = append(urls, img.MediaFile.URL)
		}
	}
	return urls
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
