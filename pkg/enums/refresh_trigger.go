package enums

import "fmt"

// RefreshTrigger names why the cart engine re-read the cart from the backend.
type RefreshTrigger string

const (
	RefreshTriggerInterval  RefreshTrigger = "interval"
	RefreshTriggerStale     RefreshTrigger = "stale"
	RefreshTriggerFocus     RefreshTrigger = "focus"
	RefreshTriggerReconnect RefreshTrigger = "reconnect"
	RefreshTriggerManual    RefreshTrigger = "manual"
	RefreshTriggerCheckout  RefreshTrigger = "checkout"
)

var clientRefreshTriggers = []RefreshTrigger{
	RefreshTriggerFocus,
	RefreshTriggerReconnect,
	RefreshTriggerManual,
}

// String implements fmt.Stringer.
func (r RefreshTrigger) String() string {
	return string(r)
}

// ParseClientRefreshTrigger accepts the triggers a browser may signal.
// An empty value is treated as manual.
func ParseClientRefreshTrigger(value string) (RefreshTrigger, error) {
	if value == "" {
		return RefreshTriggerManual, nil
	}
	for _, candidate := range clientRefreshTriggers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refresh trigger %q", value)
}
