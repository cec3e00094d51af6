package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPaymentMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPaymentMetrics(reg)
	metrics.IncTransition("paid", "provider")
	metrics.IncAnomaly("paid", "failed")
	metrics.IncWebhook("duplicate")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := counterValue(mfs, "payment_status_transitions", map[string]string{"status": "paid", "source": "provider"}); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transitions=1, got %f", got)
	}

	if got, err := counterValue(mfs, "payment_status_anomalies", map[string]string{"from": "paid", "to": "failed"}); err != nil {
		t.Fatalf("fetch anomalies: %v", err)
	} else if got != 1 {
		t.Fatalf("expected anomalies=1, got %f", got)
	}

	if got, err := counterValue(mfs, "payment_webhook_events", map[string]string{"outcome": "duplicate"}); err != nil {
		t.Fatalf("fetch webhooks: %v", err)
	} else if got != 1 {
		t.Fatalf("expected webhooks=1, got %f", got)
	}
}

func TestPaymentMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewPaymentMetrics(nil)
	metrics.IncTransition("paid", "provider")
	metrics.IncWebhook("processed")
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, metric := range mf.GetMetric() {
			for k, v := range labels {
				if !hasLabel(metric.GetLabel(), k, v) {
					continue metric
				}
			}
			return metric.GetCounter().GetValue(), nil
		}
		return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func hasLabel(pairs []*dto.LabelPair, name, value string) bool {
	for _, pair := range pairs {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}
