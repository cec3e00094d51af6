package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubFinalizer struct {
	calls []uuid.UUID
	err   error
}

func (s *stubFinalizer) MarkPaid(_ context.Context, _ *gorm.DB, orderID uuid.UUID, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, orderID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func setupReconciler(t *testing.T) (*Reconciler, Repository, *stubFinalizer) {
	t.Helper()
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	finalizer := &stubFinalizer{}
	reconciler, err := NewReconciler(ReconcilerParams{
		Repo:   repo,
		Tx:     &gormTxRunner{db: db},
		Orders: finalizer,
		Logger: testLogger(),
	})
	require.NoError(t, err)
	return reconciler, repo, finalizer
}

func mustCreate(t *testing.T, repo Repository, record *models.PaymentRecord) *models.PaymentRecord {
	t.Helper()
	created, err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	return created
}

func TestReconcilerAppliesPendingToPaid(t *testing.T) {
	reconciler, repo, finalizer := setupReconciler(t)
	record := mustCreate(t, repo, newPendingRecord("ch_paid"))

	outcome, updated, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status: enums.PaymentStatusPaid,
		Source: enums.StatusSourceProvider,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.PaymentStatusPaid, updated.Status)
	assert.Equal(t, enums.StatusSourceProvider, updated.StatusSource)
	require.NotNil(t, updated.PaidAt)
	assert.Equal(t, []uuid.UUID{record.OrderID}, finalizer.calls)
}

func TestReconcilerTerminalStatusIsIdempotent(t *testing.T) {
	reconciler, repo, finalizer := setupReconciler(t)
	record := mustCreate(t, repo, newPendingRecord("ch_idem"))

	report := StatusReport{Status: enums.PaymentStatusPaid, Source: enums.StatusSourceProvider}
	_, updated, err := reconciler.Apply(context.Background(), record, report)
	require.NoError(t, err)
	firstPaidAt := *updated.PaidAt

	outcome, again, err := reconciler.Apply(context.Background(), updated, report)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, enums.PaymentStatusPaid, again.Status)
	assert.Equal(t, firstPaidAt, *again.PaidAt)
	assert.Len(t, finalizer.calls, 1, "order must be finalized exactly once")
}

func TestReconcilerConflictingTerminalIsAnomaly(t *testing.T) {
	reconciler, repo, _ := setupReconciler(t)
	record := mustCreate(t, repo, newPendingRecord("ch_conflict"))

	_, updated, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status: enums.PaymentStatusPaid,
		Source: enums.StatusSourceProvider,
	})
	require.NoError(t, err)

	outcome, final, err := reconciler.Apply(context.Background(), updated, StatusReport{
		Status: enums.PaymentStatusFailed,
		Source: enums.StatusSourceProvider,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnomaly, outcome)
	assert.Equal(t, enums.PaymentStatusPaid, final.Status)
	assert.Nil(t, final.FailedAt)
}

func TestReconcilerProviderOverridesLocalExpiry(t *testing.T) {
	reconciler, repo, finalizer := setupReconciler(t)

	record := newPendingRecord("ch_late_paid")
	record.Status = enums.PaymentStatusExpired
	record.StatusSource = enums.StatusSourceLocal
	record = mustCreate(t, repo, record)

	outcome, updated, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status: enums.PaymentStatusPaid,
		Source: enums.StatusSourceProvider,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.PaymentStatusPaid, updated.Status)
	assert.Equal(t, enums.StatusSourceProvider, updated.StatusSource)
	assert.Len(t, finalizer.calls, 1)
}

func TestReconcilerProviderExpiryStaysTerminal(t *testing.T) {
	reconciler, repo, _ := setupReconciler(t)

	record := newPendingRecord("ch_hard_expired")
	record.Status = enums.PaymentStatusExpired
	record.StatusSource = enums.StatusSourceProvider
	record = mustCreate(t, repo, record)

	outcome, updated, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status: enums.PaymentStatusPaid,
		Source: enums.StatusSourceProvider,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnomaly, outcome)
	assert.Equal(t, enums.PaymentStatusExpired, updated.Status)
}

func TestReconcilerPendingReportOnTerminalIsNoop(t *testing.T) {
	reconciler, repo, _ := setupReconciler(t)

	record := newPendingRecord("ch_stale")
	record.Status = enums.PaymentStatusPaid
	record.StatusSource = enums.StatusSourceProvider
	record = mustCreate(t, repo, record)

	outcome, updated, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status: enums.PaymentStatusPending,
		Source: enums.StatusSourceProvider,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, enums.PaymentStatusPaid, updated.Status)
}

func TestReconcilerAppendsPayloadEvenForDuplicates(t *testing.T) {
	reconciler, repo, _ := setupReconciler(t)

	record := newPendingRecord("ch_payloads")
	record.Status = enums.PaymentStatusPaid
	record.StatusSource = enums.StatusSourceProvider
	record = mustCreate(t, repo, record)

	outcome, _, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status:  enums.PaymentStatusPaid,
		Source:  enums.StatusSourceProvider,
		Payload: []byte(`{"event":"billing.paid"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	reloaded, err := repo.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, reloaded.WebhookData)
}

func TestReconcilerApplyByExternalIDNotFound(t *testing.T) {
	reconciler, _, _ := setupReconciler(t)

	outcome, _, err := reconciler.ApplyByExternalID(context.Background(), "ch_ghost", StatusReport{
		Status: enums.PaymentStatusPaid,
		Source: enums.StatusSourceProvider,
	})
	require.Error(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestReconcilerRecordsFailureReason(t *testing.T) {
	reconciler, repo, _ := setupReconciler(t)
	record := mustCreate(t, repo, newPendingRecord("ch_refused"))

	reason := "cartão recusado"
	outcome, updated, err := reconciler.Apply(context.Background(), record, StatusReport{
		Status:        enums.PaymentStatusFailed,
		Source:        enums.StatusSourceProvider,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.PaymentStatusFailed, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, reason, *updated.FailureReason)
	require.NotNil(t, updated.FailedAt)
}
