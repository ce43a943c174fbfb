package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/commerce"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Engine is the synchronization engine surface the cart endpoints drive.
type Engine interface {
	Snapshot(ctx context.Context) (cartsvc.Cart, error)
	Add(ctx context.Context, input cartsvc.ItemInput) (cartsvc.Cart, error)
	Remove(ctx context.Context, itemID string) (cartsvc.Cart, error)
	SetQuantity(ctx context.Context, itemID string, quantity int) (cartsvc.Cart, error)
	Clear(ctx context.Context) (cartsvc.Cart, error)
	Signal(ctx context.Context, trigger enums.RefreshTrigger) (cartsvc.Cart, error)
	Subscribe(ctx context.Context) (cartsvc.Cart, <-chan cartsvc.Cart, func(), error)
}

// ProductLookup resolves the catalog snapshot taken when an item is added.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID string) (commerce.Product, error)
}

type cartResponse struct {
	cartsvc.Cart
	ItemCount int `json:"itemCount"`
}

func newCartResponse(c cartsvc.Cart) cartResponse {
	return cartResponse{Cart: c, ItemCount: c.ItemCount()}
}

// CartGet returns the visible cart, starting one for first-time visitors.
func CartGet(engine Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := engine.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

type addItemRequest struct {
	ProductID  string            `json:"productId" validate:"required"`
	Quantity   int               `json:"quantity" validate:"required,min=1"`
	Attributes map[string]string `json:"attributes"`
}

// CartAddItem snapshots the product from the catalog and merges it into the cart.
func CartAddItem(engine Engine, products ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID := strings.TrimSpace(payload.ProductID)

		product, err := products.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if product.ID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}

		c, err := engine.Add(r.Context(), cartsvc.ItemInput{
			ProductID:  product.ID,
			Quantity:   payload.Quantity,
			Price:      product.Price,
			Name:       product.Name,
			Image:      product.Image,
			Attributes: payload.Attributes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(c))
	}
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartUpdateItem sets an absolute quantity; zero or less removes the line.
func CartUpdateItem(engine Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := engine.SetQuantity(r.Context(), chi.URLParam(r, "itemId"), *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

func CartRemoveItem(engine Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := engine.Remove(r.Context(), chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

func CartClear(engine Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := engine.Clear(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

type refreshRequest struct {
	Trigger string `json:"trigger"`
}

// CartRefresh is called by the storefront when it regains focus or
// connectivity, or when the shopper asks for a reload.
func CartRefresh(engine Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload refreshRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		trigger, err := enums.ParseClientRefreshTrigger(strings.TrimSpace(payload.Trigger))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refresh trigger").
				WithDetails(map[string]string{"trigger": "must be one of: focus reconnect manual"}))
			return
		}
		c, err := engine.Signal(r.Context(), trigger)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}
