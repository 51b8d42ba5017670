package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/R3E-Network/autoscorer/internal/config"
	"github.com/R3E-Network/autoscorer/internal/orchestrator"
	"github.com/R3E-Network/autoscorer/internal/scorer"
	"github.com/R3E-Network/autoscorer/internal/scorer/builtin"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	reg := scorer.New(nil)
	if err := builtin.RegisterAll(reg); err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(nil, reg, nil)
	return Deps{Orch: orch, Reg: reg, Cfg: config.New()}
}

func newScoreWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "meta.json"), `{
		"job_id": "job-1", "task_type": "classification", "scorer": "classification_f1",
		"input_uri": "input/", "output_uri": "output/"
	}`)
	writeFile(t, filepath.Join(ws, "input", "gt.csv"), "id,label\n1,cat\n")
	writeFile(t, filepath.Join(ws, "output", "pred.csv"), "id,label\n1,cat\n")
	return ws
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCmdValidateSucceeds(t *testing.T) {
	deps := newTestDeps(t)
	ws := newScoreWorkspace(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"validate", ws}, deps, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stdout.String())
	}
}

func TestCmdScoreWritesResult(t *testing.T) {
	deps := newTestDeps(t)
	ws := newScoreWorkspace(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"score", ws}, deps, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stdout.String())
	}

	var body map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body)
	}
}

func TestCmdScorersList(t *testing.T) {
	deps := newTestDeps(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"scorers", "list"}, deps, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stdout.String())
	}
}

func TestUnknownCommandReturnsUsageError(t *testing.T) {
	deps := newTestDeps(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"bogus"}, deps, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestCmdConfigShow(t *testing.T) {
	deps := newTestDeps(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"config", "show"}, deps, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stdout.String())
	}
}

func TestCmdConfigValidate(t *testing.T) {
	deps := newTestDeps(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"config", "validate"}, deps, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stdout.String())
	}
}

func TestCmdConfigDump(t *testing.T) {
	deps := newTestDeps(t)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"config", "dump"}, deps, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stdout.String())
	}

	var body map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data map, got %v", body["data"])
	}
	if _, ok := data["SERVER_PORT"]; !ok {
		t.Fatalf("expected SERVER_PORT key in dump, got %v", data)
	}
}
