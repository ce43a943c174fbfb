package commerce

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/enums"
)

// CreateCart opens a new cart in the configured workspace, store and currency.
func (c *Client) CreateCart(ctx context.Context) (cart.Cart, error) {
	body := createCartRequest{
		WorkspaceID: c.workspaceID,
		StoreID:     c.storeID,
		CurrencyID:  c.currencyID,
		Status:      enums.CartStatusOpen.String(),
	}
	payload, err := c.call(ctx, opCreateCart, http.MethodPost, c.cartsURL(), nil, body)
	if err != nil {
		return cart.Cart{}, err
	}
	created, err := decodeCart(payload)
	if err != nil {
		return cart.Cart{}, c.fail(ctx, opCreateCart, err)
	}
	return created, nil
}

// FetchCart reads the cart through the store-scoped endpoint.
func (c *Client) FetchCart(ctx context.Context, cartID string) (cart.Cart, error) {
	ctx = c.logg.WithCartID(ctx, cartID)
	payload, err := c.call(ctx, opFetchCart, http.MethodGet, c.storeURL("carts", cartID), nil, nil)
	if err != nil {
		return cart.Cart{}, err
	}
	fetched, err := decodeCart(payload)
	if err != nil {
		return cart.Cart{}, c.fail(ctx, opFetchCart, err)
	}
	return fetched, nil
}

// SetCustomerInfo applies a partial contact update.
func (c *Client) SetCustomerInfo(ctx context.Context, cartID string, info CustomerInfo) (cart.Cart, error) {
	ctx = c.logg.WithCartID(ctx, cartID)
	body := customerInfoRequest{
		CustomerName:  info.Name,
		CustomerEmail: info.Email,
		CustomerPhone: info.Phone,
		ContactID:     info.ContactID,
	}
	return c.mutate(ctx, opSetCustomerInfo, http.MethodPatch, c.cartsURL(cartID), cartID, body)
}

// AddItems posts a batch of lines. Identical concurrent calls are not deduplicated here.
func (c *Client) AddItems(ctx context.Context, cartID string, lines []cart.LineInput) (cart.Cart, error) {
	ctx = c.logg.WithCartID(ctx, cartID)
	if len(lines) == 0 {
		return cart.Cart{}, c.fail(ctx, opAddItems, errors.New("no items to add"))
	}
	body := addItemsRequest{Data: make([]addItemEntry, 0, len(lines))}
	for _, line := range lines {
		body.Data = append(body.Data, addItemEntry{
			CartID:    cartID,
			ProductID: line.ProductID,
			StoreID:   c.storeID,
			Qty:       line.Quantity,
		})
	}
	return c.mutate(ctx, opAddItems, http.MethodPost, c.cartsURL(cartID), cartID, body)
}

// RemoveItems deletes every line holding one of productIDs in a single call.
func (c *Client) RemoveItems(ctx context.Context, cartID string, productIDs []string) (cart.Cart, error) {
	ctx = c.logg.WithCartID(ctx, cartID)
	body := removeItemsRequest{CartID: cartID, ProductIDs: productIDs}
	return c.mutate(ctx, opRemoveItems, http.MethodDelete, c.cartsURL(cartID, "items"), cartID, body)
}

// SetItemQuantity sets the absolute quantity of one product line.
func (c *Client) SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) (cart.Cart, error) {
	ctx = c.logg.WithCartID(ctx, cartID)
	body := setQuantityRequest{CartID: cartID, ProductID: productID, Qty: quantity}
	return c.mutate(ctx, opSetQuantity, http.MethodPatch, c.cartsURL(cartID, "items", productID), cartID, body)
}

// SubmitOrder turns the cart into an order.
func (c *Client) SubmitOrder(ctx context.Context, cartID string, order OrderPayload) (OrderResult, error) {
	ctx = c.logg.WithCartID(ctx, cartID)
	payload, err := c.call(ctx, opSubmitOrder, http.MethodPost, c.storeURL("carts", cartID, "order"), nil, order)
	if err != nil {
		return OrderResult{}, err
	}
	if len(payload) == 0 {
		return OrderResult{}, nil
	}
	var w wireOrder
	if err := decodeInto(payload, &w); err != nil {
		return OrderResult{}, c.fail(ctx, opSubmitOrder, err)
	}
	return toOrderResult(w), nil
}

// mutate issues a cart write. Mutation endpoints may answer with the cart or
// with an empty body; the latter yields a cart carrying only its id.
func (c *Client) mutate(ctx context.Context, op operation, method, endpoint, cartID string, body any) (cart.Cart, error) {
	payload, err := c.call(ctx, op, method, endpoint, nil, body)
	if err != nil {
		return cart.Cart{}, err
	}
	if len(payload) == 0 {
		return cart.Cart{ID: cartID, Status: enums.CartStatusOpen, Items: []cart.Item{}}, nil
	}
	var w wireCart
	if err := decodeInto(payload, &w); err != nil {
		return cart.Cart{}, c.fail(ctx, op, err)
	}
	if w.ID == "" {
		w.ID = cartID
	}
	return toCart(w), nil
}
