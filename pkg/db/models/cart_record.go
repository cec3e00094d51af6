package models

import (
	"time"

	"github.com/google/uuid"
)

// CartRecord is the active cart for a customer. One active cart per customer;
// clearing on payment success removes the items and stamps cleared_at.
type CartRecord struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;uniqueIndex"`
	ClearedAt  *time.Time `gorm:"column:cleared_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Items []CartItem `gorm:"foreignKey:CartID"`
}
