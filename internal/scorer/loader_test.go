package scorer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleScorerSource = `
var SCORER_NAME = "dynamic_sample";
function score(workspace, params) {
	return {summary: {score: 1.0}, metrics: {}, artifacts: {}, timing: {}, resources: {}, versioning: {}};
}
`

func writeScorerFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scorer file: %v", err)
	}
	return path
}

func TestLoadFromFileJS(t *testing.T) {
	dir := t.TempDir()
	path := writeScorerFile(t, dir, "sample.js", sampleScorerSource)

	r := New(nil)
	loaded, err := r.LoadFromFile(path, false)
	if err != nil {
		t.Fatalf("LoadFromFile error: %v", err)
	}
	if _, ok := loaded["dynamic_sample"]; !ok {
		t.Fatalf("expected dynamic_sample to be loaded, got %v", loaded)
	}
	if !r.Exists("dynamic_sample") {
		t.Fatalf("expected scorer registered")
	}

	s, err := r.Get("dynamic_sample")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	res, err := s.Score(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if res.Summary["score"] != 1.0 {
		t.Fatalf("unexpected score: %v", res.Summary["score"])
	}
}

func TestLoadFromFileSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeScorerFile(t, dir, "sample.js", sampleScorerSource)

	r := New(nil)
	if _, err := r.LoadFromFile(path, false); err != nil {
		t.Fatalf("first load error: %v", err)
	}
	loaded, err := r.LoadFromFile(path, false)
	if err != nil {
		t.Fatalf("second load error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected skipped load to return no entries, got %v", loaded)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScorerFile(t, dir, "a.js", sampleScorerSource)
	writeScorerFile(t, dir, "b.txt", "not a scorer")

	r := New(nil)
	loaded, err := r.LoadFromDirectory(dir, "*.js")
	if err != nil {
		t.Fatalf("LoadFromDirectory error: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected exactly one loaded scorer, got %v", loaded)
	}
}

func TestLoadFromFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeScorerFile(t, dir, "scorer.txt", "irrelevant")

	r := New(nil)
	if _, err := r.LoadFromFile(path, false); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestStartWatchingReload(t *testing.T) {
	dir := t.TempDir()
	path := writeScorerFile(t, dir, "watched.js", sampleScorerSource)

	r := New(nil)
	if _, err := r.LoadFromFile(path, false); err != nil {
		t.Fatalf("initial load error: %v", err)
	}

	r.StartWatching(path, 20*time.Millisecond)
	defer r.StopAll()

	updated := `
var SCORER_NAME = "dynamic_sample";
function score(workspace, params) {
	return {summary: {score: 2.0}, metrics: {}, artifacts: {}, timing: {}, resources: {}, versioning: {}};
}
`
	time.Sleep(30 * time.Millisecond)
	writeScorerFile(t, dir, "watched.js", updated)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, err := r.Get("dynamic_sample")
		if err == nil {
			res, scoreErr := s.Score(context.Background(), dir, nil)
			if scoreErr == nil {
				if v, ok := res.Summary["score"].(float64); ok && v == 2.0 {
					return
				}
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected watcher to reload updated scorer within deadline")
}

func TestStopWatchingStopsReload(t *testing.T) {
	dir := t.TempDir()
	path := writeScorerFile(t, dir, "watched2.js", sampleScorerSource)

	r := New(nil)
	if _, err := r.LoadFromFile(path, false); err != nil {
		t.Fatalf("initial load error: %v", err)
	}
	r.StartWatching(path, 20*time.Millisecond)
	if !r.StopWatching(path) {
		t.Fatalf("expected StopWatching to report true")
	}
	if len(r.WatchedFiles()) != 0 {
		t.Fatalf("expected no watched files after stop")
	}
}
