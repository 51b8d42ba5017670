package builtin

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRegressionRMSEPerfectScore(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "input", "gt.csv"), "id,label\n1,1.0\n2,2.0\n3,3.0\n")
	writeCSV(t, filepath.Join(dir, "output", "pred.csv"), "id,label\n1,1.0\n2,2.0\n3,3.0\n")

	s := NewRegressionRMSE()
	r, err := s.Score(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if r.Metrics["rmse"] != 0 {
		t.Fatalf("expected rmse 0, got %v", r.Metrics["rmse"])
	}
	if r.Summary["rank"] != "A" {
		t.Fatalf("expected rank A, got %v", r.Summary["rank"])
	}
}

func TestRegressionRMSENonNumericLabel(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "input", "gt.csv"), "id,label\n1,abc\n")
	writeCSV(t, filepath.Join(dir, "output", "pred.csv"), "id,label\n1,1.0\n")

	s := NewRegressionRMSE()
	if _, err := s.Score(context.Background(), dir, nil); err == nil {
		t.Fatalf("expected type error for non-numeric label")
	}
}

func TestRegressionRMSEComputation(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "input", "gt.csv"), "id,label\n1,0\n2,0\n")
	writeCSV(t, filepath.Join(dir, "output", "pred.csv"), "id,label\n1,1\n2,-1\n")

	s := NewRegressionRMSE()
	r, err := s.Score(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if r.Metrics["rmse"] != 1.0 {
		t.Fatalf("expected rmse 1.0, got %v", r.Metrics["rmse"])
	}
}
