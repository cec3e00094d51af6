package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/belezaviva/belezaviva-backend/pkg/db/models"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
	"github.com/belezaviva/belezaviva-backend/pkg/metrics"
)

// StatusReport is one status assertion about a payment, from the provider
// (webhook, status poll) or from the local expiry sweep.
type StatusReport struct {
	Status        enums.PaymentStatus
	Source        enums.StatusSource
	TransactionID *string
	FailureReason *string
	Payload       json.RawMessage
	ReportedAt    time.Time
}

// Outcome classifies what a report did to the record.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeAnomaly   Outcome = "anomaly"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Reconciler applies status reports to payment records. Transitions run once:
// pending moves to exactly one terminal status, repeats are no-ops, and the
// only terminal-to-terminal move allowed is a provider report overriding a
// locally inferred expiry.
type Reconciler struct {
	repo    Repository
	tx      txRunner
	orders  OrderFinalizer
	logger  *logger.Logger
	metrics *metrics.PaymentMetrics
}

// ReconcilerParams bundles the reconciler dependencies.
type ReconcilerParams struct {
	Repo    Repository
	Tx      txRunner
	Orders  OrderFinalizer
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
}

// NewReconciler validates the dependencies and builds a reconciler. Orders and
// Metrics are optional.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{
		repo:    params.Repo,
		tx:      params.Tx,
		orders:  params.Orders,
		logger:  params.Logger,
		metrics: params.Metrics,
	}, nil
}

type decision int

const (
	decisionApply decision = iota
	decisionNoop
	decisionAnomaly
)

// decide resolves the transition table for a current record state and an
// incoming report.
func decide(current enums.PaymentStatus, currentSource enums.StatusSource, incoming enums.PaymentStatus) decision {
	switch {
	case incoming == current:
		return decisionNoop

	case current == enums.PaymentStatusPending:
		return decisionApply

	// A local expiry is an inference from a missing answer, not a provider
	// fact. The provider's verdict about the same charge wins.
	case current == enums.PaymentStatusExpired &&
		currentSource == enums.StatusSourceLocal &&
		incoming.IsTerminal():
		return decisionApply

	case incoming == enums.PaymentStatusPending:
		return decisionNoop

	default:
		return decisionAnomaly
	}
}

// Apply reconciles one report against the stored record. It returns the
// outcome and the post-apply record. Concurrent writers race on a compare-and
// -set over the status column; the loser reloads and reclassifies.
func (r *Reconciler) Apply(ctx context.Context, record *models.PaymentRecord, report StatusReport) (Outcome, *models.PaymentRecord, error) {
	if record == nil {
		return OutcomeIgnored, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment record required")
	}
	if !report.Status.IsValid() {
		return OutcomeIgnored, record, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	ctx = r.logger.WithPaymentID(ctx, record.ID.String())

	// Payload history is kept regardless of whether the report changes
	// anything.
	if len(report.Payload) > 0 {
		if err := r.repo.AppendWebhookData(ctx, record.ID, report.Payload); err != nil {
			r.logger.Error(ctx, "append webhook payload", err)
		}
	}

	for {
		switch decide(record.Status, record.StatusSource, report.Status) {
		case decisionNoop:
			r.logObservation(ctx, record, report, "duplicate status report ignored")
			return OutcomeDuplicate, record, nil

		case decisionAnomaly:
			r.logObservation(ctx, record, report, "conflicting terminal status report")
			r.metrics.IncAnomaly(record.Status.String(), report.Status.String())
			return OutcomeAnomaly, record, nil
		}

		applied, err := r.applyTransition(ctx, record, report)
		if err != nil {
			return OutcomeIgnored, record, err
		}
		if applied {
			r.metrics.IncTransition(report.Status.String(), report.Source.String())
			updated, err := r.repo.FindByID(ctx, record.ID)
			if err != nil {
				return OutcomeApplied, record, nil
			}
			return OutcomeApplied, updated, nil
		}

		// Lost the race; reload and run the decision again.
		reloaded, err := r.repo.FindByID(ctx, record.ID)
		if err != nil {
			return OutcomeIgnored, record, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment record")
		}
		record = reloaded
	}
}

// ApplyByExternalID resolves the record for a provider charge id and
// reconciles the report against it.
func (r *Reconciler) ApplyByExternalID(ctx context.Context, externalID string, report StatusReport) (Outcome, *models.PaymentRecord, error) {
	record, err := r.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return OutcomeIgnored, nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return OutcomeIgnored, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	return r.Apply(ctx, record, report)
}

func (r *Reconciler) applyTransition(ctx context.Context, record *models.PaymentRecord, report StatusReport) (bool, error) {
	reportedAt := report.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now().UTC()
	}

	updates := map[string]any{
		"status":        report.Status,
		"status_source": report.Source,
	}
	switch report.Status {
	case enums.PaymentStatusPaid:
		updates["paid_at"] = reportedAt
	case enums.PaymentStatusFailed:
		updates["failed_at"] = reportedAt
		if report.FailureReason != nil {
			updates["failure_reason"] = *report.FailureReason
		}
	}
	if report.TransactionID != nil {
		updates["transaction_id"] = *report.TransactionID
	}

	var applied bool
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		affected, err := repo.UpdateStatusFrom(ctx, record.ID, record.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if affected == 0 {
			return nil
		}
		applied = true

		if report.Status == enums.PaymentStatusPaid && r.orders != nil {
			if err := r.orders.MarkPaid(ctx, tx, record.OrderID, reportedAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		r.logObservation(ctx, record, report, "payment status transition applied")
	}
	return applied, nil
}

func (r *Reconciler) logObservation(ctx context.Context, record *models.PaymentRecord, report StatusReport, msg string) {
	ctx = r.logger.WithFields(ctx, map[string]any{
		"current_status": record.Status.String(),
		"current_source": record.StatusSource.String(),
		"report_status":  report.Status.String(),
		"report_source":  report.Source.String(),
	})
	r.logger.Info(ctx, msg)
}
