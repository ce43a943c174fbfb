package cart

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// IdentityReader resolves the cart id stored for the caller.
type IdentityReader interface {
	Identity(ctx context.Context) (string, bool)
}

// CartFetcher reads a cart straight from the commerce backend.
type CartFetcher interface {
	FetchCart(ctx context.Context, cartID string) (cartsvc.Cart, error)
}

// CartGetByCookie serves clients that read the cart directly: it proxies the
// stored cart id to the backend and never creates a cart.
func CartGetByCookie(ids IdentityReader, fetcher CartFetcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, ok := ids.Identity(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "No cart found"))
			return
		}
		fetched, err := fetcher.FetchCart(logg.WithCartID(r.Context(), cartID), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cartsvc.Reconcile(cartsvc.Cart{}, fetched)))
	}
}
