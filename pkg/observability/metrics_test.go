package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry and observable after seeding.
func TestMetricsRegistered(t *testing.T) {
	// Seed vectors so they appear in Gather output.
	ExecutionsTotal.WithLabelValues("docker", "validated").Inc()
	ExecutionDuration.WithLabelValues("docker").Observe(0.1)
	BuildDuration.WithLabelValues("docker").Observe(0.1)
	ActiveExecutions.Set(0)
	RequestsRejectedTotal.WithLabelValues("capacity").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"enclave_executions_total":           false,
		"enclave_execution_duration_seconds": false,
		"enclave_build_duration_seconds":     false,
		"enclave_executions_active":          false,
		"enclave_requests_rejected_total":    false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, seen := range expected {
		if !seen {
			t.Errorf("metric %s not registered", name)
		}
	}
}

// TestExecutionsTotal_Labels checks the counter carries backend and state
// labels as recorded.
func TestExecutionsTotal_Labels(t *testing.T) {
	ExecutionsTotal.WithLabelValues("kubernetes", "timed_out").Inc()

	var m dto.Metric
	c, err := ExecutionsTotal.GetMetricWithLabelValues("kubernetes", "timed_out")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetCounter().GetValue() < 1 {
		t.Error("counter not incremented")
	}
}
