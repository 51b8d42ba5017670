package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/R3E-Network/autoscorer/internal/resultdoc"
	"github.com/R3E-Network/autoscorer/internal/scorer"
	"github.com/R3E-Network/autoscorer/internal/scorer/builtin"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "meta.json"), `{
		"job_id": "job-1",
		"task_type": "classification",
		"scorer": "classification_f1",
		"input_uri": "input/",
		"output_uri": "output/"
	}`)
	writeFile(t, filepath.Join(ws, "input", "gt.csv"), "id,label\n1,cat\n2,dog\n")
	writeFile(t, filepath.Join(ws, "output", "pred.csv"), "id,label\n1,cat\n2,dog\n")
	return ws
}

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	reg := scorer.New(nil)
	if err := builtin.RegisterAll(reg); err != nil {
		t.Fatal(err)
	}
	return New(nil, reg, nil)
}

func TestScoreOnlyWritesResult(t *testing.T) {
	ws := newWorkspace(t)
	o := newOrchestrator(t)

	result, path, err := o.ScoreOnly(context.Background(), ws, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary["score"] != 1.0 {
		t.Fatalf("expected perfect score, got %v", result.Summary["score"])
	}
	if _, ok := result.Artifacts["result_json"]; !ok {
		t.Fatal("expected result_json artifact entry")
	}
	if result.Timing["total_time"] <= 0 {
		t.Fatal("expected total_time to be recorded")
	}

	loaded, err := resultdoc.Load(ws)
	if err != nil {
		t.Fatalf("failed to load written result: %v", err)
	}
	if loaded.Summary["rank"] != "A" {
		t.Fatalf("expected rank A in persisted file, got %v", loaded.Summary["rank"])
	}
	if path != filepath.Join(ws, "output", "result.json") {
		t.Fatalf("unexpected result path: %s", path)
	}
}

func TestScoreOnlyScorerOverride(t *testing.T) {
	ws := newWorkspace(t)
	o := newOrchestrator(t)

	result, _, err := o.ScoreOnly(context.Background(), ws, nil, "classification_accuracy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Versioning["scorer"] != "classification_accuracy" {
		t.Fatalf("expected override scorer to run, got %v", result.Versioning["scorer"])
	}
}

func TestScoreOnlyUnknownScorer(t *testing.T) {
	ws := newWorkspace(t)
	o := newOrchestrator(t)

	_, _, err := o.ScoreOnly(context.Background(), ws, nil, "does_not_exist")
	if err == nil {
		t.Fatal("expected error for unknown scorer")
	}
}

func TestRunAndScorePersistsFailureOnMissingWorkspace(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "missing")
	o := newOrchestrator(t)

	out := o.RunAndScore(context.Background(), ws, nil, "", "")
	if out["ok"] != false {
		t.Fatalf("expected failure envelope, got %v", out)
	}
	errMap, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error map, got %v", out["error"])
	}
	if errMap["stage"] != "run" {
		t.Fatalf("expected failure scoped to run stage, got %v", errMap["stage"])
	}
}
