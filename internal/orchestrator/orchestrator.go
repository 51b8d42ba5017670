// Package orchestrator drives the fixed validate -> run -> score pipeline
// and assembles the final result document, grounded on the original
// pipeline.run_only/score_only/run_and_score.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/artifact"
	"github.com/R3E-Network/autoscorer/internal/manifest"
	"github.com/R3E-Network/autoscorer/internal/metrics"
	"github.com/R3E-Network/autoscorer/internal/resultdoc"
	"github.com/R3E-Network/autoscorer/internal/scheduler"
	"github.com/R3E-Network/autoscorer/internal/scorer"
	"github.com/R3E-Network/autoscorer/internal/validator"
	wspkg "github.com/R3E-Network/autoscorer/internal/workspace"
)

// Orchestrator wires the scheduler and scorer registry into the three
// pipeline operations.
type Orchestrator struct {
	sched   *scheduler.Scheduler
	reg     *scorer.Registry
	log     *logrus.Logger
	metrics *metrics.Metrics
}

// New returns an Orchestrator bound to sched and reg.
func New(sched *scheduler.Scheduler, reg *scorer.Registry, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{sched: sched, reg: reg, log: log}
}

// SetMetrics attaches a collector set that RunOnly/ScoreOnly record against.
// Left unset, recording is skipped.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// RunOnly validates workspace, selects an executor per the scheduler rules
// (backendHint overrides), and invokes it.
func (o *Orchestrator) RunOnly(ctx context.Context, workspace, backendHint string) (map[string]any, error) {
	if res := validator.Validate(workspace, o.reg); !res.OK {
		return nil, apierrors.New(res.FirstCode(), res.Errors[0])
	}

	spec, err := manifest.FromWorkspace(workspace)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeParseError, err.Error()).WithStage("run")
	}
	if err := spec.Validate(); err != nil {
		return nil, apierrors.New(apierrors.CodeBadFormat, err.Error()).WithStage("run")
	}

	eng, err := o.sched.SelectExecutor(backendHint)
	if err != nil {
		return nil, apierrors.FromError(err, apierrors.CodeSchedulerError, "run")
	}

	runStart := time.Now()
	err = eng.Run(ctx, spec, workspace)
	o.recordRun(time.Since(runStart).Seconds(), err == nil)
	if err != nil {
		return nil, apierrors.FromError(err, apierrors.CodeExecError, "run")
	}

	return map[string]any{"ok": true, "stage": "inference_done", "job_id": spec.JobID}, nil
}

func (o *Orchestrator) recordRun(seconds float64, ok bool) {
	if o.metrics == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	o.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	o.metrics.RunDuration.WithLabelValues(outcome).Observe(seconds)
}

func (o *Orchestrator) recordScore(name string, seconds float64, ok bool) {
	if o.metrics == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	o.metrics.ScoresTotal.WithLabelValues(name, outcome).Inc()
	if ok {
		o.metrics.ScoreDuration.WithLabelValues(name).Observe(seconds)
	}
}

// customScorerDirs lists the opportunistic load locations, in order, per
// spec §4.5.
func customScorerDirs(workspace string) []string {
	return []string{
		"custom_scorers",
		filepath.Join(workspace, "..", "custom_scorers"),
		filepath.Join(workspace, "custom_scorers"),
	}
}

func (o *Orchestrator) loadCustomScorers(workspace string) {
	for _, dir := range customScorerDirs(workspace) {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if _, err := o.reg.LoadFromDirectory(dir, "*"); err != nil {
			o.log.WithField("dir", dir).WithError(err).Warn("failed to load custom scorers")
		}
	}
}

// ScoreOnly parses the manifest, resolves the named scorer (optionally
// overridden), scores the workspace, and persists the enriched result
// document, returning the in-memory result and the path it was written to.
func (o *Orchestrator) ScoreOnly(ctx context.Context, workspace string, params map[string]any, scorerOverride string) (*resultdoc.Result, string, error) {
	spec, err := manifest.FromWorkspace(workspace)
	if err != nil {
		return nil, "", apierrors.New(apierrors.CodeParseError, err.Error()).WithStage("score")
	}

	name := spec.Scorer
	if scorerOverride != "" {
		name = scorerOverride
	}

	o.loadCustomScorers(workspace)

	s, err := o.reg.Get(name)
	if err != nil {
		available := make([]string, 0)
		for k := range o.reg.List() {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, "", apierrors.New(apierrors.CodeScorerNotFound, fmt.Sprintf("%s (available: %v)", name, available)).WithStage("score")
	}

	validateStart := time.Now()
	if v, ok := s.(scorer.Validatable); ok {
		if err := v.Validate(ctx, workspace, params); err != nil {
			return nil, "", apierrors.FromError(err, apierrors.CodeDataValidationErr, "score")
		}
	}
	validateTime := time.Since(validateStart).Seconds()

	computeStart := time.Now()
	result, err := s.Score(ctx, workspace, params)
	computeTime := time.Since(computeStart).Seconds()
	o.recordScore(name, computeTime, err == nil)
	if err != nil {
		return nil, "", apierrors.FromError(err, apierrors.CodeScoreError, "score")
	}
	if result == nil {
		result = resultdoc.New()
	}
	result.Timing["validate_time"] = validateTime
	result.Timing["compute_time"] = computeTime

	saveStart := time.Now()
	path := wspkg.New(workspace).Result()
	enrichArtifacts(workspace, result, path)
	loadResourceSummary(workspace, result)
	result.Timing["save_time"] = time.Since(saveStart).Seconds()
	result.Timing["total_time"] = validateTime + computeTime + result.Timing["save_time"]

	if _, err := resultdoc.WriteAtomic(workspace, result); err != nil {
		return nil, "", apierrors.New(apierrors.CodePipelineError, err.Error()).WithStage("score")
	}

	return result, path, nil
}

// enrichArtifacts records every input file, prediction file,
// output/artifacts/* entry, and the result document itself.
func enrichArtifacts(workspace string, result *resultdoc.Result, resultPath string) {
	if entries, err := artifact.Enumerate(workspace); err == nil {
		for name, a := range entries {
			result.Artifacts[name] = a
		}
	}

	if entries, err := artifact.EnumeratePredictions(workspace); err == nil {
		for name, a := range entries {
			result.Artifacts[name] = a
		}
	}

	inputDir := wspkg.New(workspace).Input()
	if entries, err := os.ReadDir(inputDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			full := filepath.Join(inputDir, e.Name())
			if desc, err := artifact.Describe(full); err == nil {
				rel, _ := filepath.Rel(workspace, full)
				result.Artifacts[rel] = desc
			}
		}
	}

	result.Artifacts["result_json"] = resultdoc.Artifact{Path: resultPath}
}

// loadResourceSummary folds the executor's sampled host resource usage
// (written to logs/resources.json by a Run stage, if any) into the result.
func loadResourceSummary(workspace string, result *resultdoc.Result) {
	data, err := os.ReadFile(filepath.Join(wspkg.New(workspace).Logs(), "resources.json"))
	if err != nil {
		return
	}
	var resources map[string]float64
	if err := json.Unmarshal(data, &resources); err != nil {
		return
	}
	for k, v := range resources {
		result.Resources[k] = v
	}
}

// RunAndScore calls RunOnly then ScoreOnly. Failure of either stage persists
// a result document carrying the error, scoped to the failing stage, and
// returns a JSON-shaped error payload rather than propagating the error.
func (o *Orchestrator) RunAndScore(ctx context.Context, workspace string, params map[string]any, backendHint, scorerOverride string) map[string]any {
	if _, err := o.RunOnly(ctx, workspace, backendHint); err != nil {
		return o.persistFailure(workspace, err, "run")
	}

	result, path, err := o.ScoreOnly(ctx, workspace, params, scorerOverride)
	if err != nil {
		return o.persistFailure(workspace, err, "score")
	}

	return map[string]any{"ok": true, "result": result, "result_path": path}
}

func (o *Orchestrator) persistFailure(workspace string, err error, stage string) map[string]any {
	te := apierrors.FromError(err, apierrors.CodePipelineError, stage)

	result := resultdoc.New()
	result.SetError(te.Code, te.Message, te.Stage, te.Details)
	if _, writeErr := resultdoc.WriteAtomic(workspace, result); writeErr != nil {
		o.log.WithError(writeErr).Error("failed to persist failure result")
	}

	return map[string]any{
		"ok":    false,
		"error": map[string]any{"code": te.Code, "message": te.Message, "stage": te.Stage, "details": te.Details},
	}
}
