package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

// PaymentRecord is the local bookkeeping row for one charge attempt with the
// payment provider. An order may accumulate several records across retries;
// each record transitions its status exactly once, from pending into a
// terminal state. The amount column is numeric without scale so the value is
// stored exactly as given; minor-unit rounding happens only at the provider
// wire boundary.
type PaymentRecord struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentProvider   string              `gorm:"column:payment_provider;not null;default:'abacatepay'"`
	ExternalPaymentID *string             `gorm:"column:external_payment_id;unique"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric;not null"`
	Currency          enums.Currency      `gorm:"column:currency;not null;default:'BRL'"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	StatusSource      enums.StatusSource  `gorm:"column:status_source;type:status_source;not null;default:'provider'"`
	QRCodeText        *string             `gorm:"column:qr_code_text"`
	BoletoURL         *string             `gorm:"column:boleto_url"`
	BoletoBarcode     *string             `gorm:"column:boleto_barcode"`
	CardLast4         *string             `gorm:"column:card_last4"`
	TransactionID     *string             `gorm:"column:transaction_id"`
	CustomerInfo      *types.CustomerInfo `gorm:"column:customer_info;type:jsonb"`
	Metadata          json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	WebhookData       json.RawMessage     `gorm:"column:webhook_data;type:jsonb"`
	ExpiresAt         *time.Time          `gorm:"column:expires_at"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	FailedAt          *time.Time          `gorm:"column:failed_at"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
