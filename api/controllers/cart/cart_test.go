package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/commerce"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type stubEngine struct {
	snapshotFn    func(ctx context.Context) (cartsvc.Cart, error)
	addFn         func(ctx context.Context, input cartsvc.ItemInput) (cartsvc.Cart, error)
	removeFn      func(ctx context.Context, itemID string) (cartsvc.Cart, error)
	setQuantityFn func(ctx context.Context, itemID string, quantity int) (cartsvc.Cart, error)
	clearFn       func(ctx context.Context) (cartsvc.Cart, error)
	signalFn      func(ctx context.Context, trigger enums.RefreshTrigger) (cartsvc.Cart, error)
	subscribeFn   func(ctx context.Context) (cartsvc.Cart, <-chan cartsvc.Cart, func(), error)
}

func (s stubEngine) Snapshot(ctx context.Context) (cartsvc.Cart, error) {
	if s.snapshotFn != nil {
		return s.snapshotFn(ctx)
	}
	return cartsvc.Cart{}, nil
}

func (s stubEngine) Add(ctx context.Context, input cartsvc.ItemInput) (cartsvc.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, input)
	}
	return cartsvc.Cart{}, nil
}

func (s stubEngine) Remove(ctx context.Context, itemID string) (cartsvc.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, itemID)
	}
	return cartsvc.Cart{}, nil
}

func (s stubEngine) SetQuantity(ctx context.Context, itemID string, quantity int) (cartsvc.Cart, error) {
	if s.setQuantityFn != nil {
		return s.setQuantityFn(ctx, itemID, quantity)
	}
	return cartsvc.Cart{}, nil
}

func (s stubEngine) Clear(ctx context.Context) (cartsvc.Cart, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx)
	}
	return cartsvc.Cart{}, nil
}

func (s stubEngine) Signal(ctx context.Context, trigger enums.RefreshTrigger) (cartsvc.Cart, error) {
	if s.signalFn != nil {
		return s.signalFn(ctx, trigger)
	}
	return cartsvc.Cart{}, nil
}

func (s stubEngine) Subscribe(ctx context.Context) (cartsvc.Cart, <-chan cartsvc.Cart, func(), error) {
	if s.subscribeFn != nil {
		return s.subscribeFn(ctx)
	}
	ch := make(chan cartsvc.Cart)
	close(ch)
	return cartsvc.Cart{}, ch, func() {}, nil
}

type stubProducts map[string]commerce.Product

func (s stubProducts) GetProduct(_ context.Context, productID string) (commerce.Product, error) {
	product, ok := s[productID]
	if !ok {
		return commerce.Product{}, pkgerrors.Gateway("failed to retrieve product", errors.New("404 not found"))
	}
	return product, nil
}

type cartEnvelope struct {
	Data struct {
		ID        string `json:"id"`
		ItemCount int    `json:"itemCount"`
		Total     string `json:"total"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withItemID(req *http.Request, itemID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("itemId", itemID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func openCart(items ...cartsvc.Item) cartsvc.Cart {
	return cartsvc.RecomputeTotal(cartsvc.Cart{ID: "cart-1", Status: enums.CartStatusOpen, Items: items})
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return envelope
}

func TestCartGetReturnsSnapshotWithCount(t *testing.T) {
	engine := stubEngine{snapshotFn: func(context.Context) (cartsvc.Cart, error) {
		return openCart(cartsvc.Item{ID: "i-1", ProductID: "p-1", Quantity: 3, Price: decimal.RequireFromString("2.50")}), nil
	}}

	resp := httptest.NewRecorder()
	CartGet(engine, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope cartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != "cart-1" || envelope.Data.ItemCount != 3 || envelope.Data.Total != "7.5" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestCartGetSurfacesGatewayFailure(t *testing.T) {
	engine := stubEngine{snapshotFn: func(context.Context) (cartsvc.Cart, error) {
		return cartsvc.Cart{}, pkgerrors.Gateway("failed to create cart", errors.New("connection refused"))
	}}

	resp := httptest.NewRecorder()
	CartGet(engine, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}
	envelope := decodeError(t, resp)
	if envelope.Error.Code != string(pkgerrors.CodeGateway) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if envelope.Error.Message != "failed to create cart: connection refused" {
		t.Fatalf("gateway message should carry the original error, got %q", envelope.Error.Message)
	}
}

func TestCartAddItemSnapshotsCatalogProduct(t *testing.T) {
	var got cartsvc.ItemInput
	engine := stubEngine{addFn: func(_ context.Context, input cartsvc.ItemInput) (cartsvc.Cart, error) {
		got = input
		return openCart(cartsvc.Item{ID: "i-1", ProductID: input.ProductID, Quantity: input.Quantity, Price: input.Price}), nil
	}}
	products := stubProducts{"p-1": {ID: "p-1", Name: "Mug", Price: decimal.RequireFromString("12.00"), Image: "mug.png"}}

	body := `{"productId":" p-1 ","quantity":2,"attributes":{"color":"red"}}`
	resp := httptest.NewRecorder()
	CartAddItem(engine, products, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.ProductID != "p-1" || got.Quantity != 2 || got.Name != "Mug" || got.Image != "mug.png" {
		t.Fatalf("unexpected item input %+v", got)
	}
	if !got.Price.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("expected catalog price, got %s", got.Price)
	}
	if got.Attributes["color"] != "red" {
		t.Fatalf("attributes not forwarded: %v", got.Attributes)
	}
}

func TestCartAddItemValidatesBody(t *testing.T) {
	called := false
	engine := stubEngine{addFn: func(context.Context, cartsvc.ItemInput) (cartsvc.Cart, error) {
		called = true
		return cartsvc.Cart{}, nil
	}}

	for _, body := range []string{`{"quantity":1}`, `{"productId":"p-1","quantity":0}`, `{"productId":"p-1","quantity":1,"bogus":true}`} {
		resp := httptest.NewRecorder()
		CartAddItem(engine, stubProducts{}, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, resp.Code)
		}
	}
	if called {
		t.Fatalf("engine must not be called for invalid bodies")
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	resp := httptest.NewRecorder()
	CartAddItem(stubEngine{}, stubProducts{}, testLogger()).
		ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"missing","quantity":1}`)))

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}
}

func TestCartUpdateItemPassesQuantity(t *testing.T) {
	var gotID string
	gotQty := -1
	engine := stubEngine{setQuantityFn: func(_ context.Context, itemID string, quantity int) (cartsvc.Cart, error) {
		gotID, gotQty = itemID, quantity
		return openCart(), nil
	}}

	req := withItemID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity":0}`)), "i-9")
	resp := httptest.NewRecorder()
	CartUpdateItem(engine, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotID != "i-9" || gotQty != 0 {
		t.Fatalf("unexpected call id=%s qty=%d", gotID, gotQty)
	}
}

func TestCartUpdateItemRequiresQuantity(t *testing.T) {
	req := withItemID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), "i-9")
	resp := httptest.NewRecorder()
	CartUpdateItem(stubEngine{}, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveUnknownItem(t *testing.T) {
	engine := stubEngine{removeFn: func(_ context.Context, itemID string) (cartsvc.Cart, error) {
		return openCart(), pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart").WithDetails(map[string]string{"itemId": itemID})
	}}

	resp := httptest.NewRecorder()
	CartRemoveItem(engine, testLogger()).ServeHTTP(resp, withItemID(httptest.NewRequest(http.MethodDelete, "/", nil), "ghost"))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if envelope := decodeError(t, resp); envelope.Error.Message != "item not found in cart" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestCartClearReturnsEmptyCart(t *testing.T) {
	engine := stubEngine{clearFn: func(context.Context) (cartsvc.Cart, error) {
		return openCart(), nil
	}}

	resp := httptest.NewRecorder()
	CartClear(engine, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope cartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ItemCount != 0 || envelope.Data.Total != "0" {
		t.Fatalf("expected empty cart, got %+v", envelope.Data)
	}
}

func TestCartRefreshTriggers(t *testing.T) {
	var triggers []enums.RefreshTrigger
	engine := stubEngine{signalFn: func(_ context.Context, trigger enums.RefreshTrigger) (cartsvc.Cart, error) {
		triggers = append(triggers, trigger)
		return openCart(), nil
	}}
	handler := CartRefresh(engine, testLogger())

	for _, body := range []string{`{"trigger":"focus"}`, ``} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		if resp.Code != http.StatusOK {
			t.Fatalf("body %q: expected 200 got %d", body, resp.Code)
		}
	}
	if len(triggers) != 2 || triggers[0] != enums.RefreshTriggerFocus || triggers[1] != enums.RefreshTriggerManual {
		t.Fatalf("unexpected triggers %v", triggers)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"trigger":"interval"}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("server-only trigger should be rejected, got %d", resp.Code)
	}
}
