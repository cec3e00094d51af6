package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/belezaviva/belezaviva-backend/internal/payments"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

const paymentExpiryBatchSize = 200

// PaymentExpiryJobParams configure the pending payment sweeper.
type PaymentExpiryJobParams struct {
	Logger     *logger.Logger
	Repo       payments.Repository
	Reconciler *payments.Reconciler
	BatchSize  int
}

// NewPaymentExpiryJob builds the cron job that marks overdue pending payments
// as locally expired. The expiry goes through the reconciler with source
// "local", so a later provider report about the same charge can still
// override it.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("payments reconciler required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = paymentExpiryBatchSize
	}
	return &paymentExpiryJob{
		logg:       params.Logger,
		repo:       params.Repo,
		reconciler: params.Reconciler,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg       *logger.Logger
	repo       payments.Repository
	reconciler *payments.Reconciler
	batchSize  int
	now        func() time.Time
}

func (j *paymentExpiryJob) Name() string {
	return "payment-expiry"
}

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	records, err := j.repo.FindPendingExpiredBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("find overdue payments: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	report := payments.StatusReport{
		Status:     enums.PaymentStatusExpired,
		Source:     enums.StatusSourceLocal,
		ReportedAt: cutoff,
	}

	var errs error
	expired := 0
	for i := range records {
		outcome, _, err := j.reconciler.Apply(ctx, &records[i], report)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire payment %s: %w", records[i].ID, err))
			continue
		}
		if outcome == payments.OutcomeApplied {
			expired++
		}
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"candidates": len(records),
		"expired":    expired,
	})
	j.logg.Info(ctx, "payment expiry sweep complete")
	return errs
}
