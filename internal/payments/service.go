package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/internal/holds"
	"github.com/tech4loop/marketplace-backend/internal/orders"
	product "github.com/tech4loop/marketplace-backend/internal/products"
	"github.com/tech4loop/marketplace-backend/pkg/config"
	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/mercadopago"
	"github.com/tech4loop/marketplace-backend/pkg/metrics"
	"github.com/tech4loop/marketplace-backend/pkg/outbox"
	"github.com/tech4loop/marketplace-backend/pkg/outbox/payloads"
)

const (
	eventSource = "payment-webhook"

	guardWriteTimeout = 2 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type guard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Service reconciles orders with the payment gateway.
type Service interface {
	HandleNotification(ctx context.Context, n Notification) (*Outcome, error)
	ApplyCallback(ctx context.Context, input CallbackInput) string
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Tx       txRunner
	Orders   orders.Repository
	Holds    *holds.Repository
	Products *product.Repository
	Outbox   outboxPublisher
	Gateway  paymentLookup
	// Guard is optional; the conditional order update alone keeps
	// processing exactly-once.
	Guard   guard
	Metrics *metrics.OrderMetrics
	Now     func() time.Time
}

type service struct {
	logg        *logger.Logger
	tx          txRunner
	orders      orders.Repository
	holds       *holds.Repository
	products    *product.Repository
	outbox      outboxPublisher
	gateway     paymentLookup
	guard       guard
	metrics     *metrics.OrderMetrics
	now         func() time.Time
	deferredTTL time.Duration
	successURL  string
	failureURL  string
	pendingURL  string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "config required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Orders == nil || params.Holds == nil || params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order, hold and product repositories required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	pending := params.Config.Checkout.PendingURL
	if pending == "" {
		pending = params.Config.Checkout.SuccessURL
	}
	deferredTTL := params.Config.Checkout.DeferredHoldTTL
	if deferredTTL <= 0 {
		deferredTTL = 72 * time.Hour
	}
	return &service{
		logg:        params.Logger,
		tx:          params.Tx,
		orders:      params.Orders,
		holds:       params.Holds,
		products:    params.Products,
		outbox:      params.Outbox,
		gateway:     params.Gateway,
		guard:       params.Guard,
		metrics:     params.Metrics,
		now:         now,
		deferredTTL: deferredTTL,
		successURL:  params.Config.Checkout.SuccessURL,
		failureURL:  params.Config.Checkout.FailureURL,
		pendingURL:  pending,
	}, nil
}

// HandleNotification re-fetches the payment and converges its order on the
// gateway state. Errors are meant to be answered with a 5xx so the gateway
// delivers again.
func (s *service) HandleNotification(ctx context.Context, n Notification) (*Outcome, error) {
	paymentID := n.PaymentID()
	if !n.IsPayment() || paymentID == "" {
		s.metrics.IncWebhook("ignored")
		return &Outcome{Ignored: true}, nil
	}
	ctx = s.logg.WithField(ctx, "payment_id", paymentID)

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		s.metrics.IncWebhook("gateway_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment")
	}

	status, err := enums.ParsePaymentStatus(payment.Status)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "gateway_status", payment.Status), "payment status not tracked")
		s.metrics.IncWebhook("ignored")
		return &Outcome{Ignored: true, PaymentID: paymentID}, nil
	}

	orderID, err := uuid.Parse(strings.TrimSpace(payment.ExternalReference))
	if err != nil {
		s.metrics.IncWebhook("unknown_order")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment has no order reference").
			WithDetails(map[string]any{"payment_id": paymentID, "external_reference": payment.ExternalReference})
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	dedupeKey := paymentID + ":" + string(status)
	if s.guard != nil {
		seen, gerr := s.guard.Seen(ctx, dedupeKey)
		switch {
		case gerr != nil:
			s.logg.Warn(s.logg.WithField(ctx, "error", gerr.Error()), "idempotency guard unavailable")
		case seen:
			s.metrics.IncWebhook("duplicate")
			return &Outcome{Duplicate: true, OrderID: orderID, PaymentID: paymentID, Status: status}, nil
		}
	}

	outcome, err := s.apply(ctx, orderID, paymentID, status, payment)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.metrics.IncWebhook("unknown_order")
		} else {
			s.metrics.IncWebhook("error")
		}
		return nil, err
	}
	if s.guard != nil {
		s.markProcessed(ctx, dedupeKey)
	}

	switch {
	case outcome.Approved:
		s.metrics.IncWebhook("approved")
	case outcome.Applied:
		s.metrics.IncWebhook("applied")
	default:
		s.metrics.IncWebhook("noop")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"status":         string(status),
		"applied":        outcome.Applied,
		"approved":       outcome.Approved,
		"stock_failures": outcome.StockFailures,
	}), "payment notification processed")
	return outcome, nil
}

// markProcessed outlives the request context: the update is already
// committed and the gateway may have hung up.
func (s *service) markProcessed(ctx context.Context, key string) {
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guardWriteTimeout)
	defer cancel()
	if err := s.guard.Mark(markCtx, key); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "mark payment notification processed")
	}
}

func (s *service) apply(ctx context.Context, orderID uuid.UUID, paymentID string, status enums.PaymentStatus, payment *mercadopago.Payment) (*Outcome, error) {
	outcome := &Outcome{OrderID: orderID, PaymentID: paymentID, Status: status}
	var toDecrement []models.OrderItem

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		transition, err := ordersRepo.ApplyPaymentStatus(ctx, orders.PaymentUpdate{
			OrderID:   orderID,
			PaymentID: paymentID,
			Status:    status,
		})
		if err != nil {
			return err
		}
		if !transition.Found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"order_id": orderID})
		}
		outcome.Applied = transition.Applied
		outcome.Approved = transition.Approved

		holdsRepo := s.holds.WithTx(tx)
		if transition.Approved {
			if _, err := holdsRepo.Confirm(ctx, orderID); err != nil {
				return err
			}
			order, err := ordersRepo.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			toDecrement = order.Items

			paidAt := s.now()
			if payment.DateApproved != nil {
				paidAt = payment.DateApproved.UTC()
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Source:        eventSource,
				Data: payloads.OrderPaidEvent{
					OrderID:   orderID,
					PaymentID: paymentID,
					Total:     order.TotalAmount,
					PaidAt:    paidAt,
				},
			})
		}
		if transition.Applied && status.IsTerminalFailure() {
			_, err := holdsRepo.ReleaseByOrder(ctx, orderID)
			return err
		}
		// keep stock reserved while a boleto or pix code is outstanding
		if transition.Applied && status.IsInFlight() {
			_, err := holdsRepo.ExtendByOrder(ctx, orderID, s.now().Add(s.deferredTTL))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(toDecrement) > 0 {
		outcome.StockFailures = s.decrementStock(ctx, orderID, toDecrement)
	}
	return outcome, nil
}

// decrementStock applies each paid line on its own. A failed line never
// undoes the approval; it is reported for manual correction instead.
func (s *service) decrementStock(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) int {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	rows, lookupErr := s.products.FindByIDs(ctx, ids)
	tracked := make(map[uuid.UUID]bool, len(rows))
	for _, p := range rows {
		tracked[p.ID] = p.TracksStock()
	}

	var errs error
	var failed []payloads.StockDecrementFailedEvent
	for _, item := range items {
		var cause error
		switch {
		case lookupErr != nil:
			cause = lookupErr
		case !tracked[item.ProductID]:
			continue
		default:
			ok, err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err == nil && ok {
				continue
			}
			cause = err
			if cause == nil {
				cause = fmt.Errorf("product %s no longer tracks stock", item.ProductID)
			}
		}
		errs = multierr.Append(errs, fmt.Errorf("decrement %s by %d: %w", item.ProductID, item.Quantity, cause))
		failed = append(failed, payloads.StockDecrementFailedEvent{
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Reason:    cause.Error(),
		})
	}
	if errs == nil {
		return 0
	}

	s.metrics.AddStockDecrementFailures(len(failed))
	s.logg.Error(s.logg.WithField(ctx, "failed_lines", len(multierr.Errors(errs))), "stock decrement failed after approval", errs)
	emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, evt := range failed {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockDecrementFailed,
				AggregateType: enums.AggregateProduct,
				AggregateID:   evt.ProductID,
				Source:        eventSource,
				Data:          evt,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if emitErr != nil {
		s.logg.Error(ctx, "emit stock.decrement_failed", emitErr)
	}
	return len(failed)
}

// ApplyCallback records the status reported by the browser return and picks
// the storefront page to send the buyer to. It never fails: a bad reference
// still lands on the failure page.
func (s *service) ApplyCallback(ctx context.Context, input CallbackInput) string {
	raw := input.Status
	if strings.TrimSpace(raw) == "" {
		raw = input.CollectionStatus
	}
	status := callbackStatus(raw)

	orderID, err := uuid.Parse(strings.TrimSpace(input.ExternalReference))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "external_reference", input.ExternalReference), "checkout callback without a valid order reference")
		return s.failureURL
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	transition, err := s.orders.ApplyCallbackStatus(ctx, orderID, status)
	if err != nil {
		s.logg.Error(ctx, "record checkout callback status", err)
	} else if !transition.Found {
		s.logg.Warn(ctx, "checkout callback for unknown order")
		return s.failureURL
	}

	target := s.failureURL
	switch status {
	case enums.PaymentStatusApproved:
		target = s.successURL
	case enums.PaymentStatusPending:
		target = s.pendingURL
	}
	return withOrderParam(target, orderID)
}

func callbackStatus(raw string) enums.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "success":
		return enums.PaymentStatusApproved
	case "pending", "in_process":
		return enums.PaymentStatusPending
	default:
		return enums.PaymentStatusRejected
	}
}

func withOrderParam(target string, orderID uuid.UUID) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("order_id", orderID.String())
	u.RawQuery = q.Encode()
	return u.String()
}
