package payments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belezaviva/belezaviva-backend/pkg/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	"github.com/belezaviva/belezaviva-backend/pkg/qr"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

// CreateChargeInput carries one charge creation request into the service.
// Amount is in major currency units (reais).
type CreateChargeInput struct {
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Method   enums.PaymentMethod
	Customer *types.CustomerInfo
	Card     *abacatepay.CardDetails
	Metadata json.RawMessage
}

// ChargeResponse is the client-facing result of a charge creation.
type ChargeResponse struct {
	PaymentID     string              `json:"payment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.PaymentStatus `json:"status"`
	Method        enums.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	QRCodeText    string              `json:"qr_code_text,omitempty"`
	QRCodeImage   string              `json:"qr_code_image,omitempty"`
	BoletoURL     string              `json:"boleto_url,omitempty"`
	BoletoBarcode string              `json:"boleto_barcode,omitempty"`
	CardLast4     string              `json:"card_last4,omitempty"`
	TransactionID string              `json:"transaction_id,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
}

// StatusResponse is the client-facing view of a payment's current state.
type StatusResponse struct {
	PaymentID     string              `json:"payment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.PaymentStatus `json:"status"`
	StatusSource  enums.StatusSource  `json:"status_source"`
	Method        enums.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	FailedAt      *time.Time          `json:"failed_at,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

func statusResponseFromRecord(record *models.PaymentRecord) *StatusResponse {
	resp := &StatusResponse{
		OrderID:      record.OrderID,
		Status:       record.Status,
		StatusSource: record.StatusSource,
		Method:       record.PaymentMethod,
		Amount:       record.Amount,
		Currency:     record.Currency,
		ExpiresAt:    record.ExpiresAt,
		PaidAt:       record.PaidAt,
		FailedAt:     record.FailedAt,
	}
	if record.ExternalPaymentID != nil {
		resp.PaymentID = *record.ExternalPaymentID
	} else {
		resp.PaymentID = record.ID.String()
	}
	if record.FailureReason != nil {
		resp.FailureReason = *record.FailureReason
	}
	return resp
}

func chargeResponseFromBilling(orderID uuid.UUID, billing *abacatepay.Billing, expiresAt *time.Time) *ChargeResponse {
	resp := &ChargeResponse{
		PaymentID:     billing.ExternalID,
		OrderID:       orderID,
		Status:        billing.Status,
		Method:        billing.Method,
		Amount:        billing.Amount,
		Currency:      enums.CurrencyBRL,
		QRCodeText:    billing.QRCodeText,
		BoletoURL:     billing.BoletoURL,
		BoletoBarcode: billing.BoletoBarcode,
		CardLast4:     billing.CardLast4,
		TransactionID: billing.TransactionID,
		ExpiresAt:     expiresAt,
	}
	if billing.QRCodeText != "" {
		resp.QRCodeImage = qr.RenderImage(billing.QRCodeText)
	}
	return resp
}
