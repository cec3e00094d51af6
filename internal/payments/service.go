package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

// Service exposes charge creation and status lookup.
type Service interface {
	CreateCharge(ctx context.Context, input CreateChargeInput) (*ChargeResponse, error)
	GetStatus(ctx context.Context, paymentID string) (*StatusResponse, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]StatusResponse, error)
}

type service struct {
	repo      Repository
	gateway   Gateway
	logger    *logger.Logger
	pixExpiry time.Duration
}

// ServiceParams bundles the payment service dependencies.
type ServiceParams struct {
	Repo      Repository
	Gateway   Gateway
	Logger    *logger.Logger
	PixExpiry time.Duration
}

// NewService validates dependencies and builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PixExpiry <= 0 {
		params.PixExpiry = 15 * time.Minute
	}
	return &service{
		repo:      params.Repo,
		gateway:   params.Gateway,
		logger:    params.Logger,
		pixExpiry: params.PixExpiry,
	}, nil
}

// CreateCharge registers the charge with the provider and then records it
// locally. The provider call is authoritative: once it succeeds the customer
// already has payment instructions, so a failed local insert is logged and
// swallowed rather than surfaced, and reconciliation later runs off the
// provider's webhook.
func (s *service) CreateCharge(ctx context.Context, input CreateChargeInput) (*ChargeResponse, error) {
	params := abacatepay.BillingParams{
		Amount:   input.Amount,
		OrderID:  input.OrderID,
		Method:   input.Method,
		Customer: input.Customer,
		Card:     input.Card,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, input.OrderID.String())

	billing, err := s.gateway.CreateBilling(ctx, params)
	if err != nil {
		return nil, err
	}

	expiresAt := billing.ExpiresAt
	if expiresAt == nil && input.Method == enums.PaymentMethodPix {
		at := time.Now().UTC().Add(s.pixExpiry)
		expiresAt = &at
	}

	record := s.buildRecord(input, billing, expiresAt)
	if _, err := s.repo.Create(ctx, record); err != nil {
		ctx = s.logger.WithFields(ctx, map[string]any{
			"external_payment_id": billing.ExternalID,
			"error_dump":          pkgerrors.Dump(err),
		})
		s.logger.Error(ctx, "persist payment record after provider accept", err)
	}

	return chargeResponseFromBilling(input.OrderID, billing, expiresAt), nil
}

func (s *service) buildRecord(input CreateChargeInput, billing *abacatepay.Billing, expiresAt *time.Time) *models.PaymentRecord {
	record := &models.PaymentRecord{
		ID:                uuid.New(),
		OrderID:           input.OrderID,
		PaymentMethod:     input.Method,
		PaymentProvider:   "abacatepay",
		ExternalPaymentID: &billing.ExternalID,
		Amount:            input.Amount,
		Currency:          enums.CurrencyBRL,
		Status:            billing.Status,
		StatusSource:      enums.StatusSourceProvider,
		CustomerInfo:      input.Customer,
		Metadata:          input.Metadata,
		ExpiresAt:         expiresAt,
	}
	if billing.QRCodeText != "" {
		record.QRCodeText = &billing.QRCodeText
	}
	if billing.BoletoURL != "" {
		record.BoletoURL = &billing.BoletoURL
	}
	if billing.BoletoBarcode != "" {
		record.BoletoBarcode = &billing.BoletoBarcode
	}
	if billing.CardLast4 != "" {
		record.CardLast4 = &billing.CardLast4
	}
	if billing.TransactionID != "" {
		record.TransactionID = &billing.TransactionID
	}
	if billing.Status == enums.PaymentStatusPaid {
		now := time.Now().UTC()
		record.PaidAt = &now
	}
	return record
}

// GetStatus resolves a payment by the provider charge id, falling back to the
// local record id when the value parses as a UUID.
func (s *service) GetStatus(ctx context.Context, paymentID string) (*StatusResponse, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	record, err := s.repo.FindByExternalID(ctx, paymentID)
	if err == gorm.ErrRecordNotFound {
		if localID, parseErr := uuid.Parse(paymentID); parseErr == nil {
			record, err = s.repo.FindByID(ctx, localID)
		}
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pagamento não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	return statusResponseFromRecord(record), nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]StatusResponse, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	records, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	responses := make([]StatusResponse, 0, len(records))
	for i := range records {
		responses = append(responses, *statusResponseFromRecord(&records[i]))
	}
	return responses, nil
}
