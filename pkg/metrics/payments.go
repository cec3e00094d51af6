package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks status reconciliation and webhook handling outcomes.
type PaymentMetrics struct {
	transitions *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_transitions",
		Help: "Applied payment status transitions by target status and source.",
	}, []string{"status", "source"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_anomalies",
		Help: "Rejected transitions between distinct terminal statuses.",
	}, []string{"from", "to"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events",
		Help: "Webhook deliveries by processing outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, anomalies, webhooks)
	return &PaymentMetrics{
		transitions: transitions,
		anomalies:   anomalies,
		webhooks:    webhooks,
	}
}

// IncTransition records one applied status transition.
func (p *PaymentMetrics) IncTransition(status, source string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}

// IncAnomaly records a conflicting terminal-to-terminal report.
func (p *PaymentMetrics) IncAnomaly(from, to string) {
	if p == nil || p.anomalies == nil {
		return
	}
	p.anomalies.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncWebhook records one webhook delivery outcome (processed, duplicate,
// rejected, error).
func (p *PaymentMetrics) IncWebhook(outcome string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}
