package validator

import (
	"os"
	"path/filepath"
	"testing"
)

type stubResolver map[string]bool

func (s stubResolver) Exists(name string) bool { return s[name] }

func writeWorkspace(t *testing.T, meta string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "input"), 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), []byte(meta), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	return dir
}

func TestValidateHappyPath(t *testing.T) {
	dir := writeWorkspace(t, `{"job_id":"j1","task_type":"classification","scorer":"classification_f1","input_uri":"s3://in","output_uri":"s3://out","resources":{"cpu":1,"memory":"2Gi","gpus":0}}`)
	res := Validate(dir, stubResolver{"classification_f1": true})
	if !res.OK {
		t.Fatalf("expected ok, got errors: %v", res.Errors)
	}
	if _, err := os.Stat(filepath.Join(dir, "output")); err != nil {
		t.Fatalf("expected output/ to be auto-created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "logs")); err != nil {
		t.Fatalf("expected logs/ to be auto-created: %v", err)
	}
}

func TestValidateMissingInput(t *testing.T) {
	dir := t.TempDir()
	res := Validate(dir, nil)
	if res.OK {
		t.Fatalf("expected failure for missing input/meta")
	}
	if res.FirstCode() != "MISSING_FILE" {
		t.Fatalf("expected MISSING_FILE first, got %v", res.Errors)
	}
}

func TestValidateBadJSON(t *testing.T) {
	dir := writeWorkspace(t, `{not json`)
	res := Validate(dir, nil)
	if res.OK || res.FirstCode() != "PARSE_ERROR" {
		t.Fatalf("expected PARSE_ERROR, got %v", res.Errors)
	}
}

func TestValidateMissingFields(t *testing.T) {
	dir := writeWorkspace(t, `{"job_id":"j1"}`)
	res := Validate(dir, nil)
	if res.OK {
		t.Fatalf("expected failure for missing fields")
	}
	found := false
	for _, e := range res.Errors {
		if e == "BAD_FORMAT: meta.json missing field: scorer" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing scorer field error, got %v", res.Errors)
	}
}

func TestValidateInvalidResources(t *testing.T) {
	dir := writeWorkspace(t, `{"job_id":"j1","task_type":"t","scorer":"s","input_uri":"i","output_uri":"o","resources":{"cpu":-1,"memory":"bogus","gpus":-2}}`)
	res := Validate(dir, stubResolver{"s": true})
	if res.OK {
		t.Fatalf("expected resource validation failures")
	}
	if len(res.Errors) < 3 {
		t.Fatalf("expected 3 resource errors, got %v", res.Errors)
	}
}

func TestValidateScorerNotFound(t *testing.T) {
	dir := writeWorkspace(t, `{"job_id":"j1","task_type":"t","scorer":"missing_scorer","input_uri":"i","output_uri":"o"}`)
	res := Validate(dir, stubResolver{})
	if res.OK || res.FirstCode() != "SCORER_NOT_FOUND" {
		t.Fatalf("expected SCORER_NOT_FOUND, got %v", res.Errors)
	}
}
