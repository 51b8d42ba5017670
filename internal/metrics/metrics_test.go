package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMustRegisterNoPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	m.MustRegister(reg)

	m.RunsTotal.WithLabelValues("success").Inc()
	m.ScoresTotal.WithLabelValues("classification_f1", "success").Inc()
	m.TaskQueueSize.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one metric family")
	}
}
