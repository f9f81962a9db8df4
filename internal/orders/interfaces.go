package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// Repository persists orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ApplyPaymentStatus(ctx context.Context, update PaymentUpdate) (Transition, error)
	ApplyCallbackStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (Transition, error)
	ListApprovedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
	CancelPending(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error)
}

// PaymentUpdate is the gateway's authoritative payment state for one order.
type PaymentUpdate struct {
	OrderID   uuid.UUID
	PaymentID string
	Status    enums.PaymentStatus
}

// Transition describes the outcome of a conditional status update.
type Transition struct {
	// Found is false when no order has the requested id.
	Found bool
	// Applied is true when the row changed.
	Applied bool
	// Approved is true only for the single call that moved the order into approved.
	Approved bool
}
