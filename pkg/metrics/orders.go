package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "t4l"

// OrderMetrics counts checkout, payment webhook and reconciliation outcomes.
// A zero value (or nil) is a no-op so services can run without a registry.
type OrderMetrics struct {
	checkouts       *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	stockFailures   prometheus.Counter
	reportLookups   *prometheus.CounterVec
	reportDurations prometheus.Histogram
}

// NewOrderMetrics registers the order pipeline metrics on reg.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Payment notifications by outcome.",
		}, []string{"outcome"}),
		stockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_decrement_failures_total",
			Help:      "Paid order lines whose stock could not be decremented.",
		}),
		reportLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_gateway_lookups_total",
			Help:      "Gateway payment lookups made by the reconciliation report.",
		}, []string{"result"}),
		reportDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_build_seconds",
			Help:      "Time spent building a reconciliation report.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.checkouts, m.webhooks, m.stockFailures, m.reportLookups, m.reportDurations)
	return m
}

func (m *OrderMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *OrderMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) AddStockDecrementFailures(n int) {
	if m == nil || m.stockFailures == nil || n <= 0 {
		return
	}
	m.stockFailures.Add(float64(n))
}

func (m *OrderMetrics) IncReportLookup(result string) {
	if m == nil || m.reportLookups == nil {
		return
	}
	m.reportLookups.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *OrderMetrics) ObserveReport(d time.Duration) {
	if m == nil || m.reportDurations == nil {
		return
	}
	m.reportDurations.Observe(d.Seconds())
}
