package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is required")
	}
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// ApplyPaymentStatus converges the order on the gateway state. Orders only
// move forward, so among concurrent or duplicate deliveries exactly one
// observes Approved=true. payment_id is stamped once, by the approving
// payment.
func (r *repository) ApplyPaymentStatus(ctx context.Context, update PaymentUpdate) (Transition, error) {
	if update.OrderID == uuid.Nil {
		return Transition{}, errors.New("order id is required")
	}

	orderStatus := enums.OrderStatusForPayment(update.Status)
	values := map[string]any{
		"status":         orderStatus,
		"payment_status": update.Status,
		"updated_at":     time.Now().UTC(),
	}
	if orderStatus == enums.OrderStatusApproved && update.PaymentID != "" {
		values["payment_id"] = gorm.Expr("COALESCE(payment_id, ?)", update.PaymentID)
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", update.OrderID, statusStrings(enums.OrderStatusesMovableTo(orderStatus))).
		Updates(values)
	if res.Error != nil {
		return Transition{}, res.Error
	}
	if res.RowsAffected > 0 {
		return Transition{Found: true, Applied: true, Approved: orderStatus == enums.OrderStatusApproved}, nil
	}
	found, err := r.exists(ctx, update.OrderID)
	return Transition{Found: found}, err
}

// ApplyCallbackStatus records the browser-reported status. It never touches
// the fulfillment status and never moves the payment status backwards.
func (r *repository) ApplyCallbackStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (Transition, error) {
	movable := make([]string, 0, len(enums.PaymentStatusesMovableTo(status)))
	for _, candidate := range enums.PaymentStatusesMovableTo(status) {
		movable = append(movable, string(candidate))
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", orderID, movable).
		Updates(map[string]any{
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return Transition{}, res.Error
	}
	if res.RowsAffected > 0 {
		return Transition{Found: true, Applied: true}, nil
	}
	found, err := r.exists(ctx, orderID)
	return Transition{Found: found}, err
}

// ListApprovedBetween returns approved orders created in [from, to).
func (r *repository) ListApprovedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND created_at >= ? AND created_at < ?", enums.PaymentStatusApproved, from, to).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// CancelPending cancels the given orders that are still pending and returns
// the ids that actually changed.
func (r *repository) CancelPending(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	var pending []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND status = ?", orderIDs, enums.OrderStatusPending).
		Pluck("id", &pending).Error; err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND status = ?", pending, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":     enums.OrderStatusCancelled,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *repository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func statusStrings(statuses []enums.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
