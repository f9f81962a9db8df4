package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// StockHold soft-reserves units of a product for a pending order until it
// expires, is confirmed by payment approval, or is released.
type StockHold struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int              `gorm:"column:quantity;not null"`
	Status    enums.HoldStatus `gorm:"column:status;not null;default:active"`
	ExpiresAt time.Time        `gorm:"column:expires_at;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockHold) TableName() string { return "stock_holds" }

func (h *StockHold) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
