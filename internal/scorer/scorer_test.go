package scorer

import (
	"context"
	"testing"

	"github.com/R3E-Network/autoscorer/internal/resultdoc"
)

type stubScorer struct{}

func (stubScorer) Score(ctx context.Context, workspace string, params map[string]any) (*resultdoc.Result, error) {
	return resultdoc.New(), nil
}

func TestRegisterAndGet(t *testing.T) {
	r := New(nil)
	if err := r.Register("stub", func() Scorer { return stubScorer{} }, "stubScorer"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if !r.Exists("stub") {
		t.Fatalf("expected stub to exist")
	}
	s, err := r.Get("stub")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if _, err := s.Score(context.Background(), ".", nil); err != nil {
		t.Fatalf("Score error: %v", err)
	}
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := New(nil)
	_ = r.Register("stub", func() Scorer { return stubScorer{} }, "A")
	if err := r.Register("stub", func() Scorer { return stubScorer{} }, "B"); err != nil {
		t.Fatalf("replace Register error: %v", err)
	}
	if r.List()["stub"] != "B" {
		t.Fatalf("expected replaced class name B, got %s", r.List()["stub"])
	}
}

func TestResolveMissing(t *testing.T) {
	r := New(nil)
	if _, err := r.Resolve("nope"); err == nil {
		t.Fatalf("expected error for unknown scorer")
	}
	if r.Exists("nope") {
		t.Fatalf("expected Exists false for unknown scorer")
	}
}

func TestUnregisterAndClear(t *testing.T) {
	r := New(nil)
	_ = r.Register("stub", func() Scorer { return stubScorer{} }, "A")
	if !r.Unregister("stub") {
		t.Fatalf("expected unregister to report true")
	}
	if r.Unregister("stub") {
		t.Fatalf("expected second unregister to report false")
	}

	_ = r.Register("stub2", func() Scorer { return stubScorer{} }, "A")
	r.Clear()
	if r.Exists("stub2") {
		t.Fatalf("expected registry cleared")
	}
}

func TestStopWatchingUnknown(t *testing.T) {
	r := New(nil)
	if r.StopWatching("/no/such/file") {
		t.Fatalf("expected StopWatching to report false for unwatched path")
	}
}
