package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment record repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("external_payment_id = ?", externalID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentStatusPending).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateStatusFrom applies the updates only while the row still holds the
// expected status. Zero affected rows means another writer got there first;
// callers reload and reclassify instead of retrying blindly.
func (r *repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// AppendWebhookData keeps every delivered payload on the record, including
// duplicates and payloads that did not change the status.
func (r *repository) AppendWebhookData(ctx context.Context, id uuid.UUID, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	record, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	var history []json.RawMessage
	if len(record.WebhookData) > 0 {
		if err := json.Unmarshal(record.WebhookData, &history); err != nil {
			history = []json.RawMessage{record.WebhookData}
		}
	}
	history = append(history, json.RawMessage(payload))

	merged, err := json.Marshal(history)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ?", id).
		Update("webhook_data", json.RawMessage(merged)).Error
}
