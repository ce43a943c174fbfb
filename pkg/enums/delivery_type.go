package enums

// DeliveryType selects whether the order ships to an address or is collected in store.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

// String implements fmt.Stringer.
func (d DeliveryType) String() string {
	return string(d)
}

// RequiresAddress reports whether a shipping address must be collected.
func (d DeliveryType) RequiresAddress() bool {
	return d == DeliveryTypeDelivery
}
