package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pred.csv")
	if err := os.WriteFile(path, []byte("id,label\n1,A\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := Describe(path)
	if err != nil {
		t.Fatalf("Describe error: %v", err)
	}
	if a.Size != int64(len("id,label\n1,A\n")) {
		t.Fatalf("unexpected size: %d", a.Size)
	}
	if a.SHA256 == "" {
		t.Fatalf("expected non-empty sha256")
	}
}

func TestEnumerateNoArtifactsDir(t *testing.T) {
	dir := t.TempDir()
	out, err := Enumerate(dir)
	if err != nil {
		t.Fatalf("Enumerate error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty map, got %v", out)
	}
}

func TestEnumerateNested(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "output", "artifacts")
	if err := os.MkdirAll(filepath.Join(artifactsDir, "plots"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(artifactsDir, "confusion_matrix.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(artifactsDir, "plots", "cm.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := Enumerate(dir)
	if err != nil {
		t.Fatalf("Enumerate error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", out)
	}
	if _, ok := out[filepath.Join("output", "artifacts", "confusion_matrix.json")]; !ok {
		t.Fatalf("expected top-level artifact entry, got %v", out)
	}
}
