package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// Product is a marketplace listing. A nil PartnerID marks a house product and
// a nil Stock means stock is not tracked.
type Product struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID    *uuid.UUID                `gorm:"column:partner_id;type:uuid"`
	CategoryID   *uuid.UUID                `gorm:"column:category_id;type:uuid"`
	Name         string                    `gorm:"column:name;not null"`
	Slug         string                    `gorm:"column:slug;not null;uniqueIndex"`
	Price        decimal.Decimal           `gorm:"column:price;type:numeric(12,2);not null"`
	Stock        *int                      `gorm:"column:stock"`
	Status       enums.ProductStatus       `gorm:"column:status;not null;default:active"`
	Images       pq.StringArray            `gorm:"column:images;type:text[]"`
	Brand        *string                   `gorm:"column:brand"`
	Condition    enums.ProductCondition    `gorm:"column:condition;not null;default:new"`
	Availability enums.ProductAvailability `gorm:"column:availability;not null;default:in_stock"`
	Partner      *Profile                  `gorm:"foreignKey:PartnerID"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsActive reports whether the product can be sold.
func (p Product) IsActive() bool {
	return p.Status == enums.ProductStatusActive
}

// TracksStock reports whether stock is enforced for this product.
func (p Product) TracksStock() bool {
	return p.Stock != nil
}

// PrimaryImage returns the first image reference, if any.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
