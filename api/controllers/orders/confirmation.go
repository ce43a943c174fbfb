package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/responses"
	orderssvc "github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// OrderConfirmation returns the receipt shown on the order-success page.
func OrderConfirmation(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receipt, err := svc.Confirmation(r.Context(), chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}
