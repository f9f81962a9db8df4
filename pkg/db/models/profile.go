package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// Profile shares its id with the identity provider's subject. ServiceRegions
// only matters for partners.
type Profile struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Role           enums.Role     `gorm:"column:role;not null;default:customer"`
	PartnerName    *string        `gorm:"column:partner_name"`
	WhatsApp       *string        `gorm:"column:whatsapp"`
	ServiceRegions pq.StringArray `gorm:"column:service_regions;type:text[]"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string { return "profiles" }
