package commerce

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Wire shapes returned by the commerce API. Only the fields the storefront
// reads are declared; everything nested is optional.

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

type wireCart struct {
	ID                string         `json:"id"`
	WorkspaceID       string         `json:"workspaceId"`
	StoreID           string         `json:"storeId"`
	Status            string         `json:"status"`
	Items             []wireCartItem `json:"items"`
	CommerceCartItems []wireCartItem `json:"commerceCartItems"`
	CustomerName      string         `json:"customerName"`
	CustomerEmail     string         `json:"customerEmail"`
	CustomerPhone     string         `json:"customerPhone"`
	CurrencyID        string         `json:"currencyId"`
	CreatedAt         string         `json:"createdAt"`
	UpdatedAt         string         `json:"updatedAt"`
}

type wireCartItem struct {
	ID              string            `json:"id"`
	CartID          string            `json:"cartId"`
	ProductID       string            `json:"productId"`
	Qty             int               `json:"qty"`
	Price           *decimal.Decimal  `json:"price"`
	Name            string            `json:"name"`
	Image           string            `json:"image"`
	Attributes      map[string]string `json:"attributes"`
	CommerceProduct *wireProduct      `json:"commerceProduct"`
}

type wireProduct struct {
	ID            string                `json:"id"`
	SKU           *string               `json:"sku"`
	Type          string                `json:"type"`
	StoreID       string                `json:"storeId"`
	Localizations []wireLocalization    `json:"commerceProductsLocalizations"`
	Prices        []wirePrice           `json:"commerceProductsPrices"`
	Images        []wireProductImage    `json:"relationshipsImageToCommerceProducts"`
	Inventories   []wireInventory       `json:"commerceProductsInventories"`
	Categories    []wireProductCategory `json:"commerceProductToCategories"`
	Groups        []wireProductGroup    `json:"commerceProductToGroups"`
}

type wireLocalization struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	LanguageID  string          `json:"languageId"`
	Description json.RawMessage `json:"description"`
}

type wirePrice struct {
	Value        decimal.Decimal  `json:"value"`
	Discount     *decimal.Decimal `json:"discount"`
	CurrencyID   string           `json:"currencyId"`
	Type         string           `json:"type"`
	CoreCurrency *wireCurrency    `json:"coreCurrency"`
}

type wireCurrency struct {
	Code          string `json:"code"`
	Symbol        string `json:"symbol"`
	DecimalDigits int    `json:"decimalDigits"`
}

type wireProductImage struct {
	Index     int            `json:"index"`
	MediaFile *wireMediaFile `json:"mediaFile"`
}

type wireMediaFile struct {
	URL string `json:"url"`
}

type wireInventory struct {
	Value decimal.Decimal `json:"value"`
}

type wireProductCategory struct {
	CategoryID       string        `json:"categoryId"`
	CommerceCategory *wireCategory `json:"commerceCategory"`
}

type wireProductGroup struct {
	GroupID string `json:"groupId"`
	IsMain  bool   `json:"isMain"`
}

type wireCategory struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    string `json:"parentId"`
	LanguageID  string `json:"languageId"`
}

type wireOrder struct {
	ID      string           `json:"id"`
	OrderID string           `json:"orderId"`
	Folio   *int             `json:"folio"`
	Status  string           `json:"status"`
	Total   *decimal.Decimal `json:"total"`
}

// Request bodies.

type createCartRequest struct {
	WorkspaceID string `json:"workspaceId"`
	StoreID     string `json:"storeId"`
	CurrencyID  string `json:"currencyId"`
	Status      string `json:"status"`
}

type customerInfoRequest struct {
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	ContactID     string `json:"contactId,omitempty"`
}

type addItemsRequest struct {
	Data []addItemEntry `json:"data"`
}

type addItemEntry struct {
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	StoreID   string `json:"storeId"`
	Qty       int    `json:"qty"`
}

type removeItemsRequest struct {
	CartID     string   `json:"cartId"`
	ProductIDs []string `json:"productIds"`
}

type setQuantityRequest struct {
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// CustomerInfo is the partial contact update applied to a cart.
type CustomerInfo struct {
	Name      string
	Email     string
	Phone     string
	ContactID string
}

// OrderPayload is the order-creation body accepted by the commerce API.
type OrderPayload struct {
	CurrencyID         string         `json:"currencyId"`
	OrderCustomerName  string         `json:"orderCustomerName"`
	OrderCustomerEmail string         `json:"orderCustomerEmail"`
	OrderCustomerPhone string         `json:"orderCustomerPhone"`
	OrderAddresses     OrderAddresses `json:"orderAddresses"`
}

type OrderAddresses struct {
	Shipping *ShippingAddress `json:"shipping,omitempty"`
	Billing  BillingAddress   `json:"billing"`
}

type ShippingAddress struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

type BillingAddress struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Phone   string `json:"phone"`
	Note    string `json:"note"`
	Vat     string `json:"vat"`
	Company string `json:"company"`
}

// OrderResult is what the storefront keeps from a created order.
type OrderResult struct {
	OrderID string           `json:"orderId"`
	Folio   *int             `json:"folio,omitempty"`
	Status  string           `json:"status,omitempty"`
	Total   *decimal.Decimal `json:"total,omitempty"`
}

// Product is the flattened catalog entry.
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku,omitempty"`
	Type        string          `json:"type,omitempty"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Currency    string          `json:"currency,omitempty"`
	Image       string          `json:"image,omitempty"`
	Images      []string        `json:"images,omitempty"`
	CategoryIDs []string        `json:"categoryIds,omitempty"`
	GroupID     string          `json:"groupId,omitempty"`
	// IsVariant marks a grouped product that is not the group's main entry.
	IsVariant bool `json:"isVariant"`
	InStock   bool `json:"inStock"`
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
}

// ProductQuery narrows a catalog listing.
type ProductQuery struct {
	Category string
	Search   string
	Featured bool
	Sort     string
	Limit    int
	Page     int
}
