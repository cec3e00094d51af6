package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
)

// Repository defines persistence operations for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error)
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentRecord, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) (int64, error)
	AppendWebhookData(ctx context.Context, id uuid.UUID, payload []byte) error
}

// Gateway creates charges with the payment provider.
type Gateway interface {
	CreateBilling(ctx context.Context, params abacatepay.BillingParams) (*abacatepay.Billing, error)
}

// OrderFinalizer settles the parent order when a payment reaches paid.
type OrderFinalizer interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) error
}
