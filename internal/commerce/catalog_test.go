package commerce

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProductsFiltersVariantsAndPassesQuery(t *testing.T) {
	body := `{"success":true,"error":null,"data":[
		{"id":"p-1","sku":"SKU-1","commerceProductsLocalizations":[{"name":"Tee","slug":"tee"}],
		 "commerceProductsPrices":[{"type":"retail","value":"19.99","discount":2,"coreCurrency":{"code":"USD"}}],
		 "commerceProductToCategories":[{"categoryId":"c-1"}],
		 "commerceProductsInventories":[{"value":3}]},
		{"id":"p-2","commerceProductToGroups":[{"groupId":"g-1","isMain":true}]},
		{"id":"p-3","commerceProductToGroups":[{"groupId":"g-1","isMain":false}]}
	]}`
	client, calls, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})

	products, err := client.ListProducts(context.Background(), ProductQuery{Category: "c-1", Search: "tee", Limit: 12, Page: 2})
	require.NoError(t, err)
	require.Len(t, products, 2)

	tee := products[0]
	assert.Equal(t, "Tee", tee.Name)
	assert.Equal(t, "SKU-1", tee.SKU)
	assert.Equal(t, "USD", tee.Currency)
	assert.True(t, tee.Price.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, tee.Discount.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, []string{"c-1"}, tee.CategoryIDs)
	assert.True(t, tee.InStock)

	assert.Equal(t, "g-1", products[1].GroupID)
	assert.False(t, products[1].IsVariant)

	call := (*calls)[0]
	assert.Equal(t, "/api/v1/ws-1/commerce/stores/store-1/catalog", call.Path)
	assert.Equal(t, "category=c-1&limit=12&page=2&search=tee", call.Query)
}

func TestGetProductBare(t *testing.T) {
	client, calls, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"p-9","commerceProductsInventories":[{"value":0}]}`)
	})
	p, err := client.GetProduct(context.Background(), "p-9")
	require.NoError(t, err)
	assert.Equal(t, "p-9", p.ID)
	assert.True(t, p.Price.IsZero())
	assert.False(t, p.InStock)
	assert.Equal(t, "/api/v1/ws-1/commerce/stores/store-1/catalog/p-9", (*calls)[0].Path)
}

func TestCategories(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/ws-1/commerce/stores/store-1/categories":
			writeJSON(w, http.StatusOK, `{"success":true,"error":null,"data":[{"id":"loc-1","categoryId":"c-1","name":"Shirts","slug":"shirts"}]}`)
		default:
			writeJSON(w, http.StatusOK, `{"success":true,"error":null,"data":[{"id":"loc-2","categoryId":"c-2","name":"Pants"}]}`)
		}
	})

	list, err := client.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, Category{ID: "c-1", Name: "Shirts", Slug: "shirts"}, list[0])

	one, err := client.GetCategory(context.Background(), "c-2")
	require.NoError(t, err)
	assert.Equal(t, "c-2", one.ID)
	assert.Equal(t, "Pants", one.Name)
}

func TestUnwrapShapes(t *testing.T) {
	raw, err := unwrap([]byte(` [1,2] `))
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", string(raw))

	raw, err = unwrap([]byte(`{"id":"x","data":"not an envelope"}`))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"x"`)

	_, err = unwrap([]byte(`{"success":true,"data":null}`))
	assert.Error(t, err)

	_, err = unwrap(nil)
	assert.Error(t, err)
}
