package enums

// CheckoutStage is one step of the linear checkout flow.
type CheckoutStage string

const (
	CheckoutStageDelivery CheckoutStage = "delivery"
	CheckoutStageReview   CheckoutStage = "review"
	CheckoutStagePayment  CheckoutStage = "payment"
)

var checkoutStageOrder = []CheckoutStage{
	CheckoutStageDelivery,
	CheckoutStageReview,
	CheckoutStagePayment,
}

// String implements fmt.Stringer.
func (c CheckoutStage) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStage.
func (c CheckoutStage) IsValid() bool {
	return c.index() >= 0
}

// Next returns the following stage; the last stage has no successor.
func (c CheckoutStage) Next() (CheckoutStage, bool) {
	idx := c.index()
	if idx < 0 || idx == len(checkoutStageOrder)-1 {
		return c, false
	}
	return checkoutStageOrder[idx+1], true
}

// Previous returns the preceding stage; the first stage has no predecessor.
func (c CheckoutStage) Previous() (CheckoutStage, bool) {
	idx := c.index()
	if idx <= 0 {
		return c, false
	}
	return checkoutStageOrder[idx-1], true
}

// AtLeast reports whether c is the same as or later than other.
func (c CheckoutStage) AtLeast(other CheckoutStage) bool {
	return c.index() >= other.index() && other.index() >= 0
}

func (c CheckoutStage) index() int {
	for i, candidate := range checkoutStageOrder {
		if candidate == c {
			return i
		}
	}
	return -1
}
