package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/types"
)

type stubGateway struct {
	billing *abacatepay.Billing
	err     error
	calls   int
}

func (s *stubGateway) CreateBilling(_ context.Context, params abacatepay.BillingParams) (*abacatepay.Billing, error) {
	s.calls++
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	billing := *s.billing
	billing.Method = params.Method
	billing.Amount = params.Amount
	return &billing, nil
}

type stubRepo struct {
	Repository
	created   []*models.PaymentRecord
	createErr error
	byExtID   map[string]*models.PaymentRecord
}

func (s *stubRepo) Create(_ context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, record)
	return record, nil
}

func (s *stubRepo) FindByExternalID(_ context.Context, externalID string) (*models.PaymentRecord, error) {
	if record, ok := s.byExtID[externalID]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.PaymentRecord, error) {
	return nil, gorm.ErrRecordNotFound
}

func newTestService(t *testing.T, gateway Gateway, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Gateway:   gateway,
		Logger:    testLogger(),
		PixExpiry: 15 * time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func TestCreateChargePixReturnsQRCode(t *testing.T) {
	gateway := &stubGateway{billing: &abacatepay.Billing{
		ExternalID: "ch_pix_1",
		Status:     enums.PaymentStatusPending,
		QRCodeText: "00020126580014br.gov.bcb.pix",
	}}
	repo := &stubRepo{}
	svc := newTestService(t, gateway, repo)

	resp, err := svc.CreateCharge(context.Background(), CreateChargeInput{
		OrderID: uuid.New(),
		Amount:  decimal.RequireFromString("129.90"),
		Method:  enums.PaymentMethodPix,
	})
	require.NoError(t, err)

	assert.Equal(t, "ch_pix_1", resp.PaymentID)
	assert.Equal(t, enums.PaymentStatusPending, resp.Status)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", resp.QRCodeText)
	assert.True(t, strings.HasPrefix(resp.QRCodeImage, "data:image/png;base64,"))
	require.NotNil(t, resp.ExpiresAt, "pix charge must carry a local expiry when the provider omits one")

	require.Len(t, repo.created, 1)
	record := repo.created[0]
	assert.Equal(t, enums.PaymentStatusPending, record.Status)
	assert.Equal(t, enums.StatusSourceProvider, record.StatusSource)
	assert.True(t, record.Amount.Equal(decimal.RequireFromString("129.90")))
	require.NotNil(t, record.ExternalPaymentID)
	assert.Equal(t, "ch_pix_1", *record.ExternalPaymentID)
}

func TestCreateChargeSurvivesLocalPersistFailure(t *testing.T) {
	gateway := &stubGateway{billing: &abacatepay.Billing{
		ExternalID: "ch_pix_2",
		Status:     enums.PaymentStatusPending,
		QRCodeText: "00020126",
	}}
	repo := &stubRepo{createErr: errors.New("connection refused")}
	svc := newTestService(t, gateway, repo)

	resp, err := svc.CreateCharge(context.Background(), CreateChargeInput{
		OrderID: uuid.New(),
		Amount:  decimal.RequireFromString("10.00"),
		Method:  enums.PaymentMethodPix,
	})
	require.NoError(t, err, "a provider-accepted charge must reach the customer even when the local insert fails")
	assert.Equal(t, "ch_pix_2", resp.PaymentID)
}

func TestCreateChargeBoletoWithoutDocumentFails(t *testing.T) {
	gateway := &stubGateway{billing: &abacatepay.Billing{ExternalID: "ch_boleto"}}
	repo := &stubRepo{}
	svc := newTestService(t, gateway, repo)

	_, err := svc.CreateCharge(context.Background(), CreateChargeInput{
		OrderID:  uuid.New(),
		Amount:   decimal.RequireFromString("45.50"),
		Method:   enums.PaymentMethodBoleto,
		Customer: &types.CustomerInfo{Name: "Maria", Email: "maria@example.com"},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "Informações do cliente com CPF são obrigatórias para boleto", typed.Message())
	assert.Zero(t, gateway.calls, "validation failures must not reach the provider")
	assert.Empty(t, repo.created)
}

func TestCreateChargeGatewayFailureDoesNotPersist(t *testing.T) {
	gateway := &stubGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "provider unavailable")}
	repo := &stubRepo{}
	svc := newTestService(t, gateway, repo)

	_, err := svc.CreateCharge(context.Background(), CreateChargeInput{
		OrderID: uuid.New(),
		Amount:  decimal.RequireFromString("10.00"),
		Method:  enums.PaymentMethodPix,
	})
	require.Error(t, err)
	assert.Empty(t, repo.created, "nothing is recorded for a charge the provider never accepted")
}

func TestGetStatusResolvesExternalID(t *testing.T) {
	record := newPendingRecord("ch_status")
	record.Status = enums.PaymentStatusPaid
	now := time.Now().UTC()
	record.PaidAt = &now

	repo := &stubRepo{byExtID: map[string]*models.PaymentRecord{"ch_status": record}}
	svc := newTestService(t, &stubGateway{billing: &abacatepay.Billing{}}, repo)

	resp, err := svc.GetStatus(context.Background(), "ch_status")
	require.NoError(t, err)
	assert.Equal(t, "ch_status", resp.PaymentID)
	assert.Equal(t, enums.PaymentStatusPaid, resp.Status)
	require.NotNil(t, resp.PaidAt)
}

func TestGetStatusUnknownPaymentIsNotFound(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, &stubGateway{billing: &abacatepay.Billing{}}, repo)

	_, err := svc.GetStatus(context.Background(), "ch_ghost")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
