package checkout

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Service is the checkout orchestrator surface exposed over HTTP.
type Service interface {
	State(ctx context.Context) (checkoutsvc.View, error)
	SubmitDelivery(ctx context.Context, form checkoutsvc.DeliveryForm) (checkoutsvc.View, error)
	Advance(ctx context.Context) (checkoutsvc.View, error)
	Back(ctx context.Context) (checkoutsvc.View, error)
	Review(ctx context.Context) (checkoutsvc.View, error)
	Submit(ctx context.Context, form checkoutsvc.PaymentForm) (checkoutsvc.Confirmation, error)
}

func CheckoutState(svc Service, logg *logger.Logger) http.HandlerFunc {
	return viewHandler(svc.State, logg)
}

func CheckoutAdvance(svc Service, logg *logger.Logger) http.HandlerFunc {
	return viewHandler(svc.Advance, logg)
}

func CheckoutBack(svc Service, logg *logger.Logger) http.HandlerFunc {
	return viewHandler(svc.Back, logg)
}

func CheckoutReview(svc Service, logg *logger.Logger) http.HandlerFunc {
	return viewHandler(svc.Review, logg)
}

// CheckoutDelivery validates the delivery form and moves to review.
func CheckoutDelivery(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form checkoutsvc.DeliveryForm
		if err := validators.DecodeJSON(r, &form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.SubmitDelivery(r.Context(), form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutSubmit places the order and tells the storefront where to go next.
func CheckoutSubmit(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form checkoutsvc.PaymentForm
		if err := validators.DecodeJSON(r, &form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		confirmation, err := svc.Submit(r.Context(), form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, confirmation)
	}
}

func viewHandler(fn func(context.Context) (checkoutsvc.View, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := fn(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
