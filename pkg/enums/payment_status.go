package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus mirrors the payment gateway's payment states.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusInProcess  PaymentStatus = "in_process"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusApproved   PaymentStatus = "approved"
	PaymentStatusRejected   PaymentStatus = "rejected"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusChargeback PaymentStatus = "charged_back"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusInProcess,
	PaymentStatusAuthorized,
	PaymentStatusApproved,
	PaymentStatusRejected,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
	PaymentStatusChargeback,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminalFailure reports statuses after which the buyer's stock holds can be freed.
func (p PaymentStatus) IsTerminalFailure() bool {
	return p == PaymentStatusRejected || p == PaymentStatusCancelled
}

// IsInFlight reports statuses where the buyer started paying but the money
// has not settled yet, such as an issued boleto or pix code.
func (p PaymentStatus) IsInFlight() bool {
	return p.rank() == 0
}

func (p PaymentStatus) rank() int {
	switch p {
	case PaymentStatusApproved:
		return 2
	case PaymentStatusRejected, PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusChargeback:
		return 1
	default:
		return 0
	}
}

// PaymentStatusesMovableTo lists the non-approved payment states that may be
// replaced by target without moving backwards.
func PaymentStatusesMovableTo(target PaymentStatus) []PaymentStatus {
	out := make([]PaymentStatus, 0, len(validPaymentStatuses))
	for _, candidate := range validPaymentStatuses {
		if candidate != PaymentStatusApproved && candidate.rank() <= target.rank() {
			out = append(out, candidate)
		}
	}
	return out
}

// ParsePaymentStatus converts raw gateway input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
