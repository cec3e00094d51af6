package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

// Order is the checkout result a payment attempt settles. Line item prices are
// snapshotted at creation and never re-read from the live catalog.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric;not null"`
	ShippingCost    decimal.Decimal   `gorm:"column:shipping_cost;type:numeric;not null"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric;not null"`
	ShippingAddress *types.Address    `gorm:"column:shipping_address;type:jsonb"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID"`
}
