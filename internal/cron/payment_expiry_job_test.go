package cron

import (
	"context"
	"io"
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
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

func setupExpiryTestDB(t *testing.T) *gorm.DB {
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
	return db
}

type expiryTxRunner struct {
	db *gorm.DB
}

func (e *expiryTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return e.db.WithContext(ctx).Transaction(fn)
}

func seedPayment(t *testing.T, repo payments.Repository, externalID string, status enums.PaymentStatus, expiresAt time.Time) *models.PaymentRecord {
	t.Helper()
	ext := externalID
	record, err := repo.Create(context.Background(), &models.PaymentRecord{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		PaymentMethod:     enums.PaymentMethodPix,
		PaymentProvider:   "abacatepay",
		ExternalPaymentID: &ext,
		Amount:            decimal.RequireFromString("75.00"),
		Currency:          enums.CurrencyBRL,
		Status:            status,
		StatusSource:      enums.StatusSourceProvider,
		ExpiresAt:         &expiresAt,
	})
	require.NoError(t, err)
	return record
}

func TestPaymentExpiryJobExpiresOverduePending(t *testing.T) {
	db := setupExpiryTestDB(t)
	repo := payments.NewRepository(db)
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Repo:   repo,
		Tx:     &expiryTxRunner{db: db},
		Logger: logg,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	overdue := seedPayment(t, repo, "ch_overdue", enums.PaymentStatusPending, now.Add(-20*time.Minute))
	fresh := seedPayment(t, repo, "ch_fresh", enums.PaymentStatusPending, now.Add(20*time.Minute))
	paid := seedPayment(t, repo, "ch_paid", enums.PaymentStatusPaid, now.Add(-20*time.Minute))

	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:     logg,
		Repo:       repo,
		Reconciler: reconciler,
	})
	require.NoError(t, err)
	require.Equal(t, "payment-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))

	reloaded, err := repo.FindByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, reloaded.Status)
	assert.Equal(t, enums.StatusSourceLocal, reloaded.StatusSource)

	stillFresh, err := repo.FindByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, stillFresh.Status)

	stillPaid, err := repo.FindByID(context.Background(), paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stillPaid.Status)

	// The sweep is safe to run again.
	require.NoError(t, job.Run(context.Background()))
	reloaded, err = repo.FindByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, reloaded.Status)
}
