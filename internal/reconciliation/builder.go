package reconciliation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/mercadopago"
	"github.com/tech4loop/marketplace-backend/pkg/metrics"
)

const (
	defaultConcurrency  = 8
	defaultMaxRangeDays = 366
)

type orderLister interface {
	ListApprovedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

type paymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type BuilderParams struct {
	Orders       orderLister
	Gateway      paymentLookup
	Logger       *logger.Logger
	Metrics      *metrics.OrderMetrics
	Concurrency  int
	MaxRangeDays int
}

// Builder assembles reconciliation reports. It only reads.
type Builder struct {
	orders      orderLister
	gateway     paymentLookup
	logg        *logger.Logger
	metrics     *metrics.OrderMetrics
	concurrency int
	maxDays     int
}

func NewBuilder(params BuilderParams) (*Builder, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	maxDays := params.MaxRangeDays
	if maxDays <= 0 {
		maxDays = defaultMaxRangeDays
	}
	return &Builder{
		orders:      params.Orders,
		gateway:     params.Gateway,
		logg:        params.Logger,
		metrics:     params.Metrics,
		concurrency: concurrency,
		maxDays:     maxDays,
	}, nil
}

// Build returns one row per approved order created within r, in order
// creation order. A failed gateway lookup leaves its row pending instead of
// failing the report.
func (b *Builder) Build(ctx context.Context, r Range) ([]Row, error) {
	if err := r.validate(b.maxDays); err != nil {
		return nil, err
	}
	started := time.Now()
	from, to := r.Bounds()

	orders, err := b.orders.ListApprovedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list approved orders: %w", err)
	}

	rows := make([]Row, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range orders {
		order := orders[i]
		rows[i] = Row{
			OrderID:    order.ID,
			CreatedAt:  order.CreatedAt.UTC(),
			LocalTotal: order.TotalAmount,
			PaymentID:  order.PaymentID,
			Status:     StatusPending,
		}
		if order.PaymentID == nil || *order.PaymentID == "" {
			continue
		}
		row := &rows[i]
		g.Go(func() error {
			b.fill(gctx, row)
			return nil
		})
	}
	// Lookups never return errors; Wait only waits.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.metrics.ObserveReport(time.Since(started))
	summary := Summarize(rows)
	b.logg.Info(b.logg.WithFields(ctx, map[string]any{
		"from":        from.Format(time.DateOnly),
		"to":          to.Format(time.DateOnly),
		"rows":        len(rows),
		"matched":     summary.Matched,
		"discrepancy": summary.Discrepancy,
		"pending":     summary.Pending,
	}), "reconciliation report built")
	return rows, nil
}

func (b *Builder) fill(ctx context.Context, row *Row) {
	payment, err := b.gateway.GetPayment(ctx, *row.PaymentID)
	if err != nil {
		b.metrics.IncReportLookup("error")
		b.logg.Warn(b.logg.WithFields(ctx, map[string]any{
			"order_id":   row.OrderID.String(),
			"payment_id": *row.PaymentID,
			"error":      err.Error(),
		}), "reconciliation payment lookup failed")
		return
	}
	b.metrics.IncReportLookup("ok")

	gross := payment.TransactionAmount
	fees := payment.FeeTotal()
	net := payment.TransactionDetails.NetReceivedAmount
	row.GatewayGross = &gross
	row.FeeTotal = &fees
	row.NetAmount = &net
	if payment.MoneyReleaseDate != nil {
		payout := payment.MoneyReleaseDate.UTC()
		row.PayoutDate = &payout
	}
	row.Status = Classify(row.LocalTotal, gross)
}
