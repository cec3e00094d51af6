package abacatewebhook

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/internal/payments"
	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "bv:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type webhookTxRunner struct {
	db *gorm.DB
}

func (w *webhookTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return w.db.WithContext(ctx).Transaction(fn)
}

func setupWebhookTest(t *testing.T) (*Service, payments.Repository, *memoryStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS payment_records (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  payment_provider TEXT NOT NULL DEFAULT 'abacatepay',
  external_payment_id TEXT UNIQUE,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'BRL',
  status TEXT NOT NULL DEFAULT 'pending',
  status_source TEXT NOT NULL DEFAULT 'provider',
  qr_code_text TEXT,
  boleto_url TEXT,
  boleto_barcode TEXT,
  card_last4 TEXT,
  transaction_id TEXT,
  customer_info TEXT,
  metadata TEXT,
  webhook_data TEXT,
  expires_at DATETIME,
  paid_at DATETIME,
  failed_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)

	logg := logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard})
	repo := payments.NewRepository(db)
	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Repo:   repo,
		Tx:     &webhookTxRunner{db: db},
		Logger: logg,
	})
	require.NoError(t, err)

	store := newMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "abacatepay")
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Reconciler: reconciler,
		Guard:      guard,
		Logger:     logg,
	})
	require.NoError(t, err)
	return svc, repo, store
}

func seedPending(t *testing.T, repo payments.Repository, externalID string) *models.PaymentRecord {
	t.Helper()
	ext := externalID
	record, err := repo.Create(context.Background(), &models.PaymentRecord{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		PaymentMethod:     enums.PaymentMethodPix,
		PaymentProvider:   "abacatepay",
		ExternalPaymentID: &ext,
		Amount:            decimal.RequireFromString("99.90"),
		Currency:          enums.CurrencyBRL,
		Status:            enums.PaymentStatusPending,
		StatusSource:      enums.StatusSourceProvider,
	})
	require.NoError(t, err)
	return record
}

func TestHandleEventAppliesPaidStatus(t *testing.T) {
	svc, repo, _ := setupWebhookTest(t)
	record := seedPending(t, repo, "ch_wh_paid")

	payload := []byte(`{"event":"billing.paid","data":{"id":"ch_wh_paid","status":"paid","transaction_id":"tx_9"}}`)
	outcome, err := svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeApplied, outcome)

	updated, err := repo.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, updated.Status)
	require.NotNil(t, updated.TransactionID)
	assert.Equal(t, "tx_9", *updated.TransactionID)
	assert.NotEmpty(t, updated.WebhookData)
}

func TestHandleEventDuplicateDeliveryIsAcknowledged(t *testing.T) {
	svc, repo, _ := setupWebhookTest(t)
	record := seedPending(t, repo, "ch_wh_dup")

	payload := []byte(`{"event":"billing.paid","data":{"id":"ch_wh_dup","status":"paid"}}`)

	outcome, err := svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeApplied, outcome)

	firstState, err := repo.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	firstPaidAt := *firstState.PaidAt

	outcome, err = svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeDuplicate, outcome)

	secondState, err := repo.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, secondState.Status)
	assert.Equal(t, firstPaidAt, *secondState.PaidAt)
}

func TestHandleEventLatePaidOverridesLocalExpiry(t *testing.T) {
	svc, repo, _ := setupWebhookTest(t)

	record := seedPending(t, repo, "ch_wh_late")
	_, err := repo.UpdateStatusFrom(context.Background(), record.ID, enums.PaymentStatusPending, map[string]any{
		"status":        enums.PaymentStatusExpired,
		"status_source": enums.StatusSourceLocal,
	})
	require.NoError(t, err)

	payload := []byte(`{"event":"billing.paid","data":{"id":"ch_wh_late","status":"paid"}}`)
	outcome, err := svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeApplied, outcome)

	updated, err := repo.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, updated.Status)
	assert.Equal(t, enums.StatusSourceProvider, updated.StatusSource)
}

func TestHandleEventMissingChargeIDIsRejected(t *testing.T) {
	svc, _, _ := setupWebhookTest(t)

	_, err := svc.HandleEvent(context.Background(), []byte(`{"event":"billing.paid"}`))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestHandleEventUnknownChargeReleasesIdempotencyMark(t *testing.T) {
	svc, _, store := setupWebhookTest(t)

	payload := []byte(`{"event":"billing.paid","data":{"id":"ch_ghost","status":"paid"}}`)
	_, err := svc.HandleEvent(context.Background(), payload)
	require.Error(t, err)

	assert.False(t, store.has("bv:idempotency:abacatepay:ch_ghost:paid"),
		"failed processing must not leave the delivery marked as seen")
}

func TestParseEventFlatPayload(t *testing.T) {
	event, err := ParseEvent([]byte(`{"payment_id":"ch_flat","status":"expired"}`))
	require.NoError(t, err)
	assert.Equal(t, "ch_flat", event.ExternalID())
	assert.Equal(t, "ch_flat:expired", event.Key())
}
