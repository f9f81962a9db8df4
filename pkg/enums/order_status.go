package enums

import "fmt"

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusApproved   OrderStatus = "approved"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusApproved,
	OrderStatusRejected,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// PreApprovalOrderStatuses are the states a payment webhook may still move.
// Once an order is approved (or later) only fulfillment actions change it.
var PreApprovalOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusRejected,
	OrderStatusCancelled,
}

// OrderStatusesMovableTo lists the order states a payment update may move to
// target. Payment outcomes only move forward: in-flight, then failed, then
// approved. A late approval is still honored on a failed or cancelled order
// because the buyer was charged.
func OrderStatusesMovableTo(target OrderStatus) []OrderStatus {
	switch target {
	case OrderStatusApproved:
		return PreApprovalOrderStatuses
	case OrderStatusRejected, OrderStatusCancelled:
		return []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusRejected}
	case OrderStatusPending, OrderStatusProcessing:
		return []OrderStatus{OrderStatusPending, OrderStatusProcessing}
	default:
		return nil
	}
}

func (o OrderStatus) String() string {
	return string(o)
}

func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// OrderStatusForPayment maps a gateway payment state onto the order lifecycle.
func OrderStatusForPayment(status PaymentStatus) OrderStatus {
	switch status {
	case PaymentStatusApproved:
		return OrderStatusApproved
	case PaymentStatusRejected:
		return OrderStatusRejected
	case PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusChargeback:
		return OrderStatusCancelled
	case PaymentStatusInProcess, PaymentStatusAuthorized:
		return OrderStatusProcessing
	default:
		return OrderStatusPending
	}
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
