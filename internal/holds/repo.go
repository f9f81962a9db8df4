// Package holds reserves product units for pending orders. Available stock
// is the product's stock minus its active, unexpired holds.
package holds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ActiveQuantities sums active holds that have not expired at now, keyed by
// product id. Products without holds are absent from the map.
func (r *Repository) ActiveQuantities(ctx context.Context, productIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ProductID uuid.UUID
		Total     int
	}
	err := r.db.WithContext(ctx).
		Model(&models.StockHold{}).
		Select("product_id, COALESCE(SUM(quantity), 0) AS total").
		Where("product_id IN ? AND status = ? AND expires_at > ?", productIDs, enums.HoldStatusActive, now.UTC()).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, holds []models.StockHold) error {
	if len(holds) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&holds).Error
}

// Confirm marks the order's active holds as consumed by a paid order.
func (r *Repository) Confirm(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return transition(r.db.WithContext(ctx).Where("order_id = ?", orderID), enums.HoldStatusConfirmed)
}

// ReleaseByOrder frees the order's active holds.
func (r *Repository) ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return transition(r.db.WithContext(ctx).Where("order_id = ?", orderID), enums.HoldStatusReleased)
}

// ExtendByOrder pushes the expiry of the order's active holds out to until.
// Holds already expiring later are left alone.
func (r *Repository) ExtendByOrder(ctx context.Context, orderID uuid.UUID, until time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockHold{}).
		Where("order_id = ? AND status = ? AND expires_at < ?", orderID, enums.HoldStatusActive, until.UTC()).
		Updates(map[string]any{
			"expires_at": until.UTC(),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ListExpired returns up to limit active holds whose expiry is at or before now.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockHold, error) {
	if limit <= 0 {
		limit = 500
	}
	var holds []models.StockHold
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.HoldStatusActive, now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&holds).Error
	return holds, err
}

// ReleaseExpired releases the given holds if they are still active.
func (r *Repository) ReleaseExpired(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return transition(r.db.WithContext(ctx).Where("id IN ?", ids), enums.HoldStatusReleased)
}

func transition(scoped *gorm.DB, to enums.HoldStatus) (int64, error) {
	res := scoped.
		Model(&models.StockHold{}).
		Where("status = ?", enums.HoldStatusActive).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
