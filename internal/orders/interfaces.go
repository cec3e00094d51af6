package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (int64, error)
}

// ProductLoader resolves catalog products for price snapshotting.
type ProductLoader interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// CartClearer empties the customer's active cart after a successful payment.
type CartClearer interface {
	ClearForCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, clearedAt time.Time) error
}
