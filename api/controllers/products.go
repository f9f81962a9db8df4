package controllers

import (
	"net/http"

	"github.com/tech4loop/marketplace-backend/api/responses"
	"github.com/tech4loop/marketplace-backend/api/validators"
	"github.com/tech4loop/marketplace-backend/internal/coverage"
	productsvc "github.com/tech4loop/marketplace-backend/internal/products"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/pagination"
)

// ListProducts returns the active catalog filtered to partners that deliver to
// the city/state in the query string.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loc := coverage.Location{
			City:  validators.QueryString(r, "city", 80),
			State: validators.QueryString(r, "state", 2),
		}
		params := productsvc.ListParams{
			CategorySlug: validators.QueryString(r, "category", 80),
			Pagination:   pagination.Params{Limit: limit, Offset: offset},
		}

		items, err := svc.ListForLocation(r.Context(), loc, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
