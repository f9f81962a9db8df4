package controllers

import (
	"net/http"

	"github.com/tech4loop/marketplace-backend/api/responses"
	"github.com/tech4loop/marketplace-backend/api/validators"
	checkoutsvc "github.com/tech4loop/marketplace-backend/internal/checkout"
	"github.com/tech4loop/marketplace-backend/internal/payments"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

// Checkout validates the cart, places the order and returns the gateway
// redirect.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutsvc.CheckoutInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), result.OrderID.String()), "checkout.created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutCallback is the browser return URL. It records the reported status
// and redirects to the storefront result page.
func CheckoutCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		q := r.URL.Query()
		target := svc.ApplyCallback(r.Context(), payments.CallbackInput{
			Status:            validators.SanitizeString(q.Get("status"), 32),
			CollectionStatus:  validators.SanitizeString(q.Get("collection_status"), 32),
			ExternalReference: validators.SanitizeString(q.Get("external_reference"), 64),
		})
		http.Redirect(w, r, target, http.StatusFound)
	}
}
