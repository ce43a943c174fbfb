package enums

import "strings"

// CartStatus is the lifecycle state the commerce backend reports for a cart.
type CartStatus string

const (
	CartStatusOpen   CartStatus = "open"
	CartStatusClosed CartStatus = "closed"
)

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsOpen reports whether the cart still accepts mutations.
func (c CartStatus) IsOpen() bool {
	return c == CartStatusOpen
}

// NormalizeCartStatus maps backend wording onto the two states the storefront knows.
// "open" and "active" are open; anything else, including an empty value, is closed.
func NormalizeCartStatus(value string) CartStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open", "active":
		return CartStatusOpen
	default:
		return CartStatusClosed
	}
}
