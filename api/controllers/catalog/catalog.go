package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/commerce"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	defaultLimit = 24
	maxLimit     = 100
	maxSearchLen = 120
)

// Catalog is the read-only product catalog proxied to the storefront.
type Catalog interface {
	ListProducts(ctx context.Context, q commerce.ProductQuery) ([]commerce.Product, error)
	GetProduct(ctx context.Context, productID string) (commerce.Product, error)
	ListCategories(ctx context.Context) ([]commerce.Category, error)
	GetCategory(ctx context.Context, categoryID string) (commerce.Category, error)
}

// ListProducts proxies a catalog page. Grouped variants are filtered out
// upstream so each product group shows once.
func ListProducts(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, maxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		featured, err := validators.ParseQueryBool(r, "featured")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		query := commerce.ProductQuery{
			Category: strings.TrimSpace(q.Get("category")),
			Search:   validators.SanitizeString(q.Get("search"), maxSearchLen),
			Featured: featured,
			Sort:     strings.TrimSpace(q.Get("sort")),
			Limit:    limit,
			Page:     page,
		}

		products, err := svc.ListProducts(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, products, types.ListMeta{Page: page, Limit: limit, Count: len(products)})
	}
}

func GetProduct(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetProduct(r.Context(), chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ListCategories(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, categories, types.ListMeta{Count: len(categories)})
	}
}

func GetCategory(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category, err := svc.GetCategory(r.Context(), chi.URLParam(r, "categoryId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, category)
	}
}
