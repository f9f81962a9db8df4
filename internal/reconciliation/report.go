package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
)

// Status is the outcome of comparing an order with its gateway payment.
type Status string

const (
	StatusMatched     Status = "matched"
	StatusDiscrepancy Status = "discrepancy"
	StatusPending     Status = "pending"
)

// tolerance is one centavo; smaller differences are rounding noise.
var tolerance = decimal.New(1, -2)

// Row is one approved order and what the gateway reports for it.
type Row struct {
	OrderID      uuid.UUID        `json:"order_id"`
	CreatedAt    time.Time        `json:"created_at"`
	LocalTotal   decimal.Decimal  `json:"local_total"`
	PaymentID    *string          `json:"payment_id"`
	GatewayGross *decimal.Decimal `json:"gateway_gross"`
	FeeTotal     *decimal.Decimal `json:"fee_total"`
	NetAmount    *decimal.Decimal `json:"net_amount"`
	PayoutDate   *time.Time       `json:"payout_date"`
	Status       Status           `json:"status"`
}

// Range is an inclusive span of UTC calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// Bounds returns the half-open [from, to) instant window covering the range.
func (r Range) Bounds() (time.Time, time.Time) {
	from := startOfDay(r.Start)
	to := startOfDay(r.End).AddDate(0, 0, 1)
	return from, to
}

// Days is the number of calendar days in the range.
func (r Range) Days() int {
	from, to := r.Bounds()
	return int(to.Sub(from).Hours() / 24)
}

func (r Range) validate(maxDays int) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end dates are required")
	}
	if startOfDay(r.End).Before(startOfDay(r.Start)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date must not be before start date")
	}
	if maxDays > 0 && r.Days() > maxDays {
		return pkgerrors.New(pkgerrors.CodeValidation, "date range too large").
			WithDetails(map[string]any{"max_days": maxDays})
	}
	return nil
}

// Classify compares the local total with the gateway gross amount.
func Classify(local, gross decimal.Decimal) Status {
	if local.Sub(gross).Abs().LessThan(tolerance) {
		return StatusMatched
	}
	return StatusDiscrepancy
}

// Summary counts rows per status.
type Summary struct {
	Matched     int `json:"matched"`
	Discrepancy int `json:"discrepancy"`
	Pending     int `json:"pending"`
}

func Summarize(rows []Row) Summary {
	var s Summary
	for _, row := range rows {
		switch row.Status {
		case StatusMatched:
			s.Matched++
		case StatusDiscrepancy:
			s.Discrepancy++
		default:
			s.Pending++
		}
	}
	return s
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
