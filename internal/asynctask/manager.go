// Package asynctask implements the submit/dedup/worker/callback/status
// layer described in spec §4.6, grounded on the original Celery
// run_job/score_job/pipeline_job tasks, with deduplication upgraded to the
// broker's Redis advisory lock per the redesign note in §9.
package asynctask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/asynctask/broker"
	"github.com/R3E-Network/autoscorer/internal/orchestrator"
	"github.com/R3E-Network/autoscorer/internal/retry"
	"github.com/R3E-Network/autoscorer/internal/taskstore"
)

// Action names the pipeline operation a submitted job runs.
type Action string

// Supported actions. ActionRun and ActionScore match the original
// "autoscorer.run_job" and "autoscorer.score_job" task names;
// ActionRunAndScore corresponds to the original "autoscorer.pipeline_job".
const (
	ActionRun         Action = "run"
	ActionScore       Action = "score"
	ActionRunAndScore Action = "run_and_score"
)

// job is one unit of queued work.
type job struct {
	taskID         string
	action         Action
	workspace      string
	params         map[string]any
	backendHint    string
	scorerOverride string
	callbackURL    string
	lock           *broker.Lock
}

// Manager submits jobs, deduplicates by workspace, and runs them on a
// bounded worker pool.
type Manager struct {
	store      *taskstore.Store
	redis      *redis.Client
	orch       *orchestrator.Orchestrator
	jobs       chan job
	lockTTL    time.Duration
	log        *logrus.Logger
	httpClient *http.Client
}

// NewManager constructs a Manager with an empty job queue. No workers run
// until Run is called; canceling Run's context stops them.
func NewManager(store *taskstore.Store, redisClient *redis.Client, orch *orchestrator.Orchestrator, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		store:      store,
		redis:      redisClient,
		orch:       orch,
		jobs:       make(chan job, 256),
		lockTTL:    30 * time.Minute,
		log:        log,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Run starts workerCount goroutines consuming the job queue. It blocks
// until ctx is canceled, then drains in-flight workers before returning.
func (m *Manager) Run(ctx context.Context, workerCount int) error {
	if workerCount <= 0 {
		workerCount = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case j := <-m.jobs:
					m.process(ctx, j)
				}
			}
		})
	}
	return g.Wait()
}

// Submit enqueues a job for action against workspace, deduplicating
// against any in-flight job for the same workspace. If a lock cannot be
// acquired, the call reports the workspace as already running without
// enqueuing anything.
func (m *Manager) Submit(ctx context.Context, action Action, workspace string, params map[string]any, backendHint, scorerOverride, callbackURL string) (taskID string, submitted, running bool, err error) {
	lock, ok, err := broker.Acquire(ctx, m.redis, workspace, m.lockTTL)
	if err != nil {
		return "", false, false, apierrors.New(apierrors.CodePipelineError, err.Error())
	}
	if !ok {
		existing, findErr := m.store.FindByWorkspace(ctx, workspace)
		if findErr == nil && len(existing) > 0 {
			return existing[0], false, true, nil
		}
		return "", false, true, nil
	}

	taskID = uuid.NewString()
	if err := m.store.Upsert(ctx, taskID, taskstore.UpsertParams{
		Action:    actionPtr(action),
		Workspace: strPtr(workspace),
		State:     statePtr(taskstore.StateSubmitted),
	}); err != nil {
		_ = lock.Release(ctx)
		return "", false, false, fmt.Errorf("persist submitted task: %w", err)
	}

	m.jobs <- job{
		taskID:         taskID,
		action:         action,
		workspace:      workspace,
		params:         params,
		backendHint:    backendHint,
		scorerOverride: scorerOverride,
		callbackURL:    callbackURL,
		lock:           lock,
	}
	return taskID, true, false, nil
}

// Status returns the best-known state for taskID: the task store record,
// reconciled with whether the workspace's advisory lock is still held.
func (m *Manager) Status(ctx context.Context, taskID string) (*taskstore.Task, error) {
	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("status query: %w", err)
	}
	if task == nil {
		return nil, nil
	}
	if task.State == taskstore.StateSubmitted || task.State == taskstore.StateStarted {
		held, holderErr := broker.Holder(ctx, m.redis, task.Workspace)
		if holderErr != nil {
			task.Error = map[string]any{"error": holderErr.Error()}
		} else if !held {
			m.log.WithField("task_id", taskID).Warn("task lock released but store still shows in-flight state")
		}
	}
	return task, nil
}

func (m *Manager) process(ctx context.Context, j job) {
	defer func() {
		if err := j.lock.Release(ctx); err != nil {
			m.log.WithField("task_id", j.taskID).WithError(err).Warn("failed to release workspace lock")
		}
	}()

	if err := m.store.Upsert(ctx, j.taskID, taskstore.UpsertParams{State: statePtr(taskstore.StateStarted)}); err != nil {
		m.log.WithField("task_id", j.taskID).WithError(err).Error("failed to persist STARTED state")
	}

	switch j.action {
	case ActionRun:
		m.runRunOnly(ctx, j)
	case ActionScore:
		m.runScoreOnly(ctx, j)
	case ActionRunAndScore:
		m.runRunAndScore(ctx, j)
	default:
		m.fail(ctx, j, apierrors.New(apierrors.CodePipelineError, fmt.Sprintf("unknown action %q", j.action)))
	}
}

func (m *Manager) runRunOnly(ctx context.Context, j job) {
	result, err := m.orch.RunOnly(ctx, j.workspace, j.backendHint)
	if err != nil {
		m.fail(ctx, j, apierrors.FromError(err, apierrors.CodeExecError, "run"))
		return
	}
	m.succeed(ctx, j, map[string]any{"result": result, "workspace": j.workspace})
}

func (m *Manager) runScoreOnly(ctx context.Context, j job) {
	result, path, err := m.orch.ScoreOnly(ctx, j.workspace, j.params, j.scorerOverride)
	if err != nil {
		m.fail(ctx, j, apierrors.FromError(err, apierrors.CodeScoreError, "score"))
		return
	}
	m.succeed(ctx, j, map[string]any{"result": result, "result_path": path, "workspace": j.workspace})
}

func (m *Manager) runRunAndScore(ctx context.Context, j job) {
	out := m.orch.RunAndScore(ctx, j.workspace, j.params, j.backendHint, j.scorerOverride)
	if out["ok"] == false {
		te := asErrorEnvelope(out["error"])
		m.failTyped(ctx, j, te)
		return
	}
	m.succeed(ctx, j, out)
}

func (m *Manager) succeed(ctx context.Context, j job, data map[string]any) {
	if err := m.store.Upsert(ctx, j.taskID, taskstore.UpsertParams{
		State:    statePtr(taskstore.StateSuccess),
		Result:   data,
		Finished: true,
	}); err != nil {
		m.log.WithField("task_id", j.taskID).WithError(err).Error("failed to persist SUCCESS state")
	}
	if j.callbackURL != "" {
		m.postCallback(ctx, j.callbackURL, map[string]any{
			"ok":   true,
			"data": data,
			"meta": map[string]any{"task_id": j.taskID},
		})
	}
}

func (m *Manager) fail(ctx context.Context, j job, te *apierrors.Error) {
	m.failTyped(ctx, j, te)
}

func (m *Manager) failTyped(ctx context.Context, j job, te *apierrors.Error) {
	errPayload := map[string]any{"code": te.Code, "message": te.Message, "stage": te.Stage}
	if te.Details != nil {
		errPayload["details"] = te.Details
	}

	if err := m.store.Upsert(ctx, j.taskID, taskstore.UpsertParams{
		State:    statePtr(taskstore.StateFailure),
		Error:    errPayload,
		Finished: true,
	}); err != nil {
		m.log.WithField("task_id", j.taskID).WithError(err).Error("failed to persist FAILURE state")
	}
	if j.callbackURL != "" {
		m.postCallback(ctx, j.callbackURL, map[string]any{
			"ok":    false,
			"error": errPayload,
			"meta":  map[string]any{"task_id": j.taskID},
		})
	}
}

func (m *Manager) postCallback(ctx context.Context, url string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		m.log.WithField("url", url).WithError(err).Warn("failed to marshal callback payload")
		return
	}

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	err = retry.Do(ctx, cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("callback returned %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		m.log.WithField("url", url).WithError(err).Warn("callback delivery failed after retries")
	}
}

func asErrorEnvelope(v any) *apierrors.Error {
	m, ok := v.(map[string]any)
	if !ok {
		return apierrors.New(apierrors.CodePipelineError, "unknown failure")
	}
	te := &apierrors.Error{}
	if code, ok := m["code"].(string); ok {
		te.Code = code
	}
	if msg, ok := m["message"].(string); ok {
		te.Message = msg
	}
	if stage, ok := m["stage"].(string); ok {
		te.Stage = stage
	}
	if details, ok := m["details"].(map[string]any); ok {
		te.Details = details
	}
	return te
}

func actionPtr(a Action) *string {
	s := string(a)
	return &s
}

func strPtr(s string) *string { return &s }

func statePtr(s string) *string { return &s }
