package cluster

import (
	"context"
	"testing"

	"github.com/R3E-Network/autoscorer/internal/config"
)

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(config.KubernetesConfig{}); err == nil {
		t.Fatal("expected error without a cluster endpoint")
	}
}

func TestRunAlwaysFails(t *testing.T) {
	e, err := New(config.KubernetesConfig{Enabled: true, APIServer: "https://cluster.example:6443"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Run(context.Background(), nil, "/tmp/ws"); err == nil {
		t.Fatal("expected Run to fail")
	}
}
