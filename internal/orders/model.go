package orders

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Receipt is the local record of an order placed through the storefront. It
// backs the confirmation view; the commerce backend stays the system of record.
type Receipt struct {
	ID            string             `gorm:"column:id;primaryKey;size:36" json:"id"`
	OrderID       string             `gorm:"column:order_id;not null" json:"orderId"`
	Folio         *int               `gorm:"column:folio" json:"folio,omitempty"`
	CartID        string             `gorm:"column:cart_id;not null" json:"cartId"`
	CustomerName  string             `gorm:"column:customer_name;not null" json:"customerName"`
	CustomerEmail string             `gorm:"column:customer_email;not null" json:"customerEmail"`
	DeliveryType  enums.DeliveryType `gorm:"column:delivery_type;not null" json:"deliveryType"`
	CurrencyID    string             `gorm:"column:currency_id;not null" json:"currencyId"`
	ItemCount     int                `gorm:"column:item_count;not null" json:"itemCount"`
	Total         decimal.Decimal    `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Receipt) TableName() string {
	return "order_receipts"
}
