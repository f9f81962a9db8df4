package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// OrderLine is one purchased product inside an order event.
type OrderLine struct {
	ProductID       uuid.UUID       `json:"product_id"`
	Name            string          `json:"name,omitempty"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// OrderCreatedEvent signals a checkout that is waiting for payment.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	PartnerID     *uuid.UUID        `json:"partner_id,omitempty"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	CustomerPhone string            `json:"customer_phone"`
	City          string            `json:"city"`
	State         string            `json:"state"`
	Total         decimal.Decimal   `json:"total"`
	PaymentMode   enums.PaymentMode `json:"payment_mode"`
	Items         []OrderLine       `json:"items"`
	HoldsExpireAt time.Time         `json:"holds_expire_at"`
}

// OrderPaidEvent is emitted once, when the gateway approves the payment.
// The email sender and partner notifications consume it.
type OrderPaidEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Total     decimal.Decimal `json:"total"`
	PaidAt    time.Time       `json:"paid_at"`
}

// OrderExpiredEvent reports a pending order cancelled after its holds lapsed.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// StockDecrementFailedEvent asks operators to fix stock by hand after a paid
// order could not decrement one of its products.
type StockDecrementFailedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}
