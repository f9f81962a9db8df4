package payments

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

const notificationTypePayment = "payment"

// Notification is the gateway's webhook body. Only the payment id is
// trusted; everything else is re-fetched from the gateway.
type Notification struct {
	ID     FlexibleID       `json:"id"`
	Type   string           `json:"type"`
	Action string           `json:"action"`
	Data   NotificationData `json:"data"`
}

type NotificationData struct {
	ID FlexibleID `json:"id"`
}

// IsPayment reports whether the notification concerns a payment.
func (n Notification) IsPayment() bool {
	return strings.EqualFold(strings.TrimSpace(n.Type), notificationTypePayment)
}

// PaymentID returns the referenced payment id, empty when absent.
func (n Notification) PaymentID() string {
	return string(n.Data.ID)
}

// FlexibleID accepts ids sent either as JSON strings or numbers.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*f = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// Outcome summarizes what a notification changed.
type Outcome struct {
	Ignored   bool
	Duplicate bool
	OrderID   uuid.UUID
	PaymentID string
	Status    enums.PaymentStatus
	// Applied is false when the order had already moved past the payment
	// stage and the notification was a no-op.
	Applied       bool
	Approved      bool
	StockFailures int
}

// CallbackInput carries the query parameters of the browser return URL.
type CallbackInput struct {
	Status            string
	CollectionStatus  string
	ExternalReference string
}
