package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// Order is the checkout aggregate. PaymentID is stamped by the payment
// webhook and never changes after the order is approved.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID          *uuid.UUID          `gorm:"column:partner_id;type:uuid"`
	CustomerName       string              `gorm:"column:customer_name;not null"`
	CustomerEmail      string              `gorm:"column:customer_email;not null"`
	CustomerPhone      string              `gorm:"column:customer_phone;not null"`
	CustomerDocument   *string             `gorm:"column:customer_document"`
	ShippingStreet     string              `gorm:"column:shipping_street;not null"`
	ShippingNumber     string              `gorm:"column:shipping_number;not null"`
	ShippingComplement *string             `gorm:"column:shipping_complement"`
	ShippingDistrict   string              `gorm:"column:shipping_district;not null"`
	ShippingCity       string              `gorm:"column:shipping_city;not null"`
	ShippingState      string              `gorm:"column:shipping_state;not null"`
	ShippingZip        string              `gorm:"column:shipping_zip;not null"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status             enums.OrderStatus   `gorm:"column:status;not null;default:pending"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;not null;default:pending"`
	PaymentMode        enums.PaymentMode   `gorm:"column:payment_mode;not null;default:all"`
	PaymentID          *string             `gorm:"column:payment_id"`
	TrackingCode       *string             `gorm:"column:tracking_code"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
