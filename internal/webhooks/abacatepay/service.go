package abacatewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/belezaviva/belezaviva-backend/internal/payments"
	"github.com/belezaviva/belezaviva-backend/pkg/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	pkgerrors "github.com/belezaviva/belezaviva-backend/pkg/errors"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
	"github.com/belezaviva/belezaviva-backend/pkg/metrics"
)

// Event is a status notification from AbacatePay. The provider nests charge
// fields under data but some deliveries arrive flat, so both shapes parse.
type Event struct {
	ID    string    `json:"id"`
	Event string    `json:"event"`
	Data  eventData `json:"data"`

	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	FailureReason string `json:"failure_reason"`

	raw json.RawMessage
}

type eventData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	FailureReason string `json:"failure_reason"`
}

// ParseEvent decodes a webhook delivery body.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	event.raw = json.RawMessage(payload)
	return &event, nil
}

// ExternalID returns the provider charge id the event refers to.
func (e *Event) ExternalID() string {
	if e.Data.ID != "" {
		return e.Data.ID
	}
	return e.PaymentID
}

func (e *Event) status() string {
	if e.Data.Status != "" {
		return e.Data.Status
	}
	if e.Status != "" {
		return e.Status
	}
	// "billing.paid" style event names carry the status as the suffix.
	if idx := strings.LastIndex(e.Event, "."); idx >= 0 {
		return e.Event[idx+1:]
	}
	return ""
}

func (e *Event) transactionID() *string {
	if e.Data.TransactionID != "" {
		return &e.Data.TransactionID
	}
	if e.TransactionID != "" {
		return &e.TransactionID
	}
	return nil
}

func (e *Event) failureReason() *string {
	if e.Data.FailureReason != "" {
		return &e.Data.FailureReason
	}
	if e.FailureReason != "" {
		return &e.FailureReason
	}
	return nil
}

// Key identifies the delivery for idempotency tracking. The provider does not
// always send an event id, so the charge id plus reported status stands in.
func (e *Event) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.ExternalID() + ":" + e.status()
}

// ServiceParams bundle the webhook service dependencies. Metrics is optional.
type ServiceParams struct {
	Reconciler *payments.Reconciler
	Guard      *IdempotencyGuard
	Logger     *logger.Logger
	Metrics    *metrics.PaymentMetrics
}

// Service turns provider webhook deliveries into status reports.
type Service struct {
	reconciler *payments.Reconciler
	guard      *IdempotencyGuard
	logger     *logger.Logger
	metrics    *metrics.PaymentMetrics
}

// NewService validates dependencies and builds the webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments reconciler required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		reconciler: params.Reconciler,
		guard:      params.Guard,
		logger:     params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// HandleEvent reconciles one webhook delivery. Replays and duplicates are
// acknowledged without effect; a processing failure releases the idempotency
// mark so the provider's retry can run again.
func (s *Service) HandleEvent(ctx context.Context, payload []byte) (payments.Outcome, error) {
	event, err := ParseEvent(payload)
	if err != nil {
		s.metrics.IncWebhook("rejected")
		return payments.OutcomeIgnored, err
	}

	externalID := event.ExternalID()
	if externalID == "" {
		s.metrics.IncWebhook("rejected")
		return payments.OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing charge id")
	}
	status := abacatepay.NormalizeStatus(event.status())

	ctx = s.logger.WithFields(ctx, map[string]any{
		"external_payment_id": externalID,
		"webhook_event":       event.Event,
	})

	seen, err := s.guard.CheckAndMark(ctx, event.Key())
	if err != nil {
		// Redis being down must not drop payment confirmations; the
		// reconciler is idempotent on its own.
		s.logger.Error(ctx, "webhook idempotency check", err)
	} else if seen {
		s.logger.Info(ctx, "duplicate webhook delivery acknowledged")
		s.metrics.IncWebhook("duplicate")
		return payments.OutcomeDuplicate, nil
	}

	report := payments.StatusReport{
		Status:        status,
		Source:        enums.StatusSourceProvider,
		TransactionID: event.transactionID(),
		FailureReason: event.failureReason(),
		Payload:       event.raw,
		ReportedAt:    time.Now().UTC(),
	}

	outcome, _, err := s.reconciler.ApplyByExternalID(ctx, externalID, report)
	if err != nil {
		if delErr := s.guard.Delete(ctx, event.Key()); delErr != nil {
			s.logger.Error(ctx, "release webhook idempotency mark", delErr)
		}
		s.metrics.IncWebhook("error")
		return outcome, err
	}

	s.metrics.IncWebhook(string(outcome))
	return outcome, nil
}
