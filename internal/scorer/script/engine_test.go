package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleScript = `
var SCORER_NAME = "sample_script";
function score(workspace, params) {
	return {summary: {score: 1.0, pass: true}, metrics: {score: 1.0}, artifacts: {}, timing: {}, resources: {}, versioning: {}};
}
function validate(workspace, params) {
	if (!workspace) { throw new Error("workspace required"); }
}
`

func TestLoadAndScore(t *testing.T) {
	s, err := Load(sampleScript)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if s.Name != "sample_script" {
		t.Fatalf("unexpected name: %s", s.Name)
	}

	r, err := s.Score(context.Background(), "/tmp/ws", nil)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if r.Metrics["score"] != 1.0 {
		t.Fatalf("unexpected metrics: %+v", r.Metrics)
	}
}

func TestValidate(t *testing.T) {
	s, err := Load(sampleScript)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := s.Validate(context.Background(), "/tmp/ws", nil); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestLoadInvalidScript(t *testing.T) {
	if _, err := Load("function("); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.js")
	if err := os.WriteFile(path, []byte(sampleScript), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s, err := Load(string(data))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if s.Name != "sample_script" {
		t.Fatalf("unexpected name: %s", s.Name)
	}
}
