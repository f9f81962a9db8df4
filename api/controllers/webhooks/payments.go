package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tech4loop/marketplace-backend/api/responses"
	"github.com/tech4loop/marketplace-backend/internal/payments"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

const (
	secretHeader    = "x-secret-token"
	maxPayloadBytes = 64 << 10
)

type paymentNotificationHandler interface {
	HandleNotification(ctx context.Context, n payments.Notification) (*payments.Outcome, error)
}

// PaymentWebhook receives gateway payment notifications. A body that cannot
// be decoded answers 400; processing failures answer 500 so the gateway
// redelivers.
func PaymentWebhook(svc paymentNotificationHandler, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !validSecret(secret, r.Header.Get(secretHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}
		if svc == nil {
			responses.WriteErrorStatus(ctx, logg, w, http.StatusInternalServerError, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteErrorStatus(ctx, logg, w, http.StatusInternalServerError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var notification payments.Notification
		if err := json.Unmarshal(payload, &notification); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification"))
			return
		}
		// Older gateway integrations send the id only in the query string.
		if notification.PaymentID() == "" {
			if id := strings.TrimSpace(r.URL.Query().Get("data.id")); id != "" {
				notification.Data.ID = payments.FlexibleID(id)
			}
			if notification.Type == "" {
				notification.Type = strings.TrimSpace(r.URL.Query().Get("type"))
			}
		}

		outcome, err := svc.HandleNotification(ctx, notification)
		if err != nil {
			responses.WriteErrorStatus(ctx, logg, w, http.StatusInternalServerError, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"received":  true,
			"ignored":   outcome.Ignored,
			"duplicate": outcome.Duplicate,
			"applied":   outcome.Applied,
		})
	}
}

// validSecret fails closed when no secret is configured.
func validSecret(expected, got string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(got))) == 1
}
