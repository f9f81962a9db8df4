package controllers

import (
	"context"
	"net/http"

	"github.com/tech4loop/marketplace-backend/api/responses"
	"github.com/tech4loop/marketplace-backend/api/validators"
	"github.com/tech4loop/marketplace-backend/internal/reconciliation"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

type reportBuilder interface {
	Build(ctx context.Context, r reconciliation.Range) ([]reconciliation.Row, error)
}

// AdminReconciliation audits approved orders in [start, end] against the
// gateway.
func AdminReconciliation(builder reportBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if builder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report builder unavailable"))
			return
		}

		start, err := validators.ParseQueryDate(r, "start")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, err := validators.ParseQueryDate(r, "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := builder.Build(r.Context(), reconciliation.Range{Start: start, End: end})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
