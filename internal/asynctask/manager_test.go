package asynctask

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/R3E-Network/autoscorer/internal/orchestrator"
	"github.com/R3E-Network/autoscorer/internal/scorer"
	"github.com/R3E-Network/autoscorer/internal/scorer/builtin"
	"github.com/R3E-Network/autoscorer/internal/taskstore"
)

func newTestManager(t *testing.T) (*Manager, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store, err := taskstore.Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := scorer.New(nil)
	if err := builtin.RegisterAll(reg); err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(nil, reg, nil)

	return NewManager(store, client, orch, nil), client
}

func writeScoreWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	mustWrite(t, filepath.Join(ws, "meta.json"), `{
		"job_id": "job-1", "task_type": "classification", "scorer": "classification_f1",
		"input_uri": "input/", "output_uri": "output/"
	}`)
	mustWrite(t, filepath.Join(ws, "input", "gt.csv"), "id,label\n1,cat\n")
	mustWrite(t, filepath.Join(ws, "output", "pred.csv"), "id,label\n1,cat\n")
	return ws
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitDeduplicatesInFlightWorkspace(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws := writeScoreWorkspace(t)

	taskID, submitted, running, err := m.Submit(ctx, ActionScore, ws, nil, "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !submitted || running || taskID == "" {
		t.Fatalf("expected first submit to succeed, got submitted=%v running=%v taskID=%s", submitted, running, taskID)
	}

	_, submitted2, running2, err := m.Submit(ctx, ActionScore, ws, nil, "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submitted2 || !running2 {
		t.Fatalf("expected duplicate submit to report running, got submitted=%v running=%v", submitted2, running2)
	}
}

func TestWorkerProcessesScoreJobAndPostsCallback(t *testing.T) {
	m, _ := newTestManager(t)
	ws := writeScoreWorkspace(t)

	received := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go m.Run(ctx, 1)

	taskID, submitted, _, err := m.Submit(ctx, ActionScore, ws, nil, "", "", server.URL)
	if err != nil || !submitted {
		t.Fatalf("submit failed: submitted=%v err=%v", submitted, err)
	}

	select {
	case body := <-received:
		if body["ok"] != true {
			t.Fatalf("expected successful callback, got %v", body)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for callback")
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.Status(context.Background(), taskID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if task != nil && task.State == taskstore.StateSuccess {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached SUCCESS state")
}
