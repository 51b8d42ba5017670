// Package cluster provides a placeholder Engine for distributed execution
// backends. AutoScorer's pipeline stays single-node/no-DAG per its
// non-goals; this stub exists so the scheduler's "cluster mode" rule has a
// real code path to select or fall through rather than a magic boolean.
package cluster

import (
	"context"
	"fmt"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/config"
	"github.com/R3E-Network/autoscorer/internal/manifest"
)

// Engine is a cluster-backed executor. It only initializes when an API
// endpoint is configured, and never actually dispatches work — AutoScorer
// does not ship a distributed job runner.
type Engine struct {
	apiServer string
}

// New returns a cluster Engine, or an error if no cluster API endpoint is
// configured.
func New(cfg config.KubernetesConfig) (*Engine, error) {
	if !cfg.Enabled || cfg.APIServer == "" {
		return nil, apierrors.New(apierrors.CodeSchedulerError, "cluster mode requested but no cluster API endpoint is configured")
	}
	return &Engine{apiServer: cfg.APIServer}, nil
}

// Run always fails: AutoScorer has no distributed job runner, by design.
func (e *Engine) Run(ctx context.Context, spec *manifest.JobSpec, workspace string) error {
	return apierrors.New(apierrors.CodeSchedulerError, fmt.Sprintf(
		"cluster engine at %s cannot execute jobs: distributed execution is not implemented", e.apiServer))
}
