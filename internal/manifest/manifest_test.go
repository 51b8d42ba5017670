package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromWorkspaceMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := FromWorkspace(dir); err == nil {
		t.Fatalf("expected error for missing meta.json")
	}
}

func TestParseDefaults(t *testing.T) {
	spec, err := Parse([]byte(`{"job_id":"j1","scorer":"classification_f1","input_uri":"s3://in","output_uri":"s3://out","container":{"image":"python:3.11"}}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if spec.TimeLimit != defaultTimeLimit {
		t.Fatalf("expected default time limit, got %d", spec.TimeLimit)
	}
	if spec.Resources.Memory != "2Gi" {
		t.Fatalf("expected default memory, got %s", spec.Resources.Memory)
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
}

func TestValidateRejectsBadMemory(t *testing.T) {
	spec, err := Parse([]byte(`{"job_id":"j1","scorer":"x","container":{"image":"a"},"resources":{"memory":"bogus"}}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := spec.Validate(); err == nil {
		t.Fatalf("expected validation error for bad memory string")
	}
}

func TestEffectiveGPUs(t *testing.T) {
	two := 2
	spec := &JobSpec{Resources: Resources{GPUs: 1}, Container: ContainerSpec{GPUs: &two}}
	if got := spec.EffectiveGPUs(); got != 2 {
		t.Fatalf("expected container override 2, got %d", got)
	}
	spec2 := &JobSpec{Resources: Resources{GPUs: 3}}
	if got := spec2.EffectiveGPUs(); got != 3 {
		t.Fatalf("expected resources value 3, got %d", got)
	}
}

func TestFromWorkspaceReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`{"job_id":"j2","scorer":"regression_rmse","container":{"image":"img"}}`)
	if err := os.WriteFile(filepath.Join(dir, FileName), content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	spec, err := FromWorkspace(dir)
	if err != nil {
		t.Fatalf("FromWorkspace error: %v", err)
	}
	if spec.JobID != "j2" {
		t.Fatalf("unexpected job id: %s", spec.JobID)
	}
}
