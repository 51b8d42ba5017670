package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	wspkg "github.com/R3E-Network/autoscorer/internal/workspace"
)

// pipelineRequest covers the shared body shape of /run, /score, /pipeline,
// and /submit.
type pipelineRequest struct {
	Action      string         `json:"action"`
	Workspace   string         `json:"workspace"`
	Params      map[string]any `json:"params"`
	Backend     string         `json:"backend"`
	Scorer      string         `json:"scorer"`
	CallbackURL string         `json:"callback_url"`
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apierrors.New(apierrors.CodeBadFormat, "invalid request body: "+err.Error())
	}
	return nil
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Workspace == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "workspace is required"))
		return
	}

	result, err := s.orch.RunOnly(r.Context(), req.Workspace, req.Backend)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, result, nil)
}

func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Workspace == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "workspace is required"))
		return
	}

	result, path, err := s.orch.ScoreOnly(r.Context(), req.Workspace, req.Params, req.Scorer)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"result": result, "result_path": path}, nil)
}

func (s *Server) pipelineHandler(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Workspace == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "workspace is required"))
		return
	}

	out := s.orch.RunAndScore(r.Context(), req.Workspace, req.Params, req.Backend, req.Scorer)
	if out["ok"] == false {
		errPayload, _ := out["error"].(map[string]any)
		w.Header().Set("Content-Type", "application/json")
		code, _ := errPayload["code"].(string)
		w.WriteHeader(statusForCode(code))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": errPayload, "meta": meta(nil)})
		return
	}
	writeOK(w, http.StatusOK, out["result"], map[string]any{"result_path": out["result_path"]})
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeErr(w, apierrors.New(apierrors.CodePipelineError, "async submission is not enabled"))
		return
	}

	var req pipelineRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Workspace == "" || req.Action == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "action and workspace are required"))
		return
	}

	taskID, submitted, running, err := s.tasks.Submit(r.Context(), actionFromString(req.Action), req.Workspace, req.Params, req.Backend, req.Scorer, req.CallbackURL)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusAccepted, map[string]any{
		"task_id":   taskID,
		"submitted": submitted,
		"running":   running,
	}, nil)
}

func (s *Server) taskStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeErr(w, apierrors.New(apierrors.CodePipelineError, "async submission is not enabled"))
		return
	}

	taskID := mux.Vars(r)["task_id"]
	task, err := s.tasks.Status(r.Context(), taskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if task == nil {
		writeErr(w, apierrors.New(apierrors.CodeMissingFile, "task not found: "+taskID))
		return
	}
	writeOK(w, http.StatusOK, task, nil)
}

func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	if workspace == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "workspace query parameter is required"))
		return
	}

	path := wspkg.New(workspace).Result()
	data, err := os.ReadFile(path)
	if err != nil {
		writeErr(w, apierrors.New(apierrors.CodeMissingFile, "result not found for workspace: "+workspace))
		return
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "result.json is not valid JSON"))
		return
	}
	writeOK(w, http.StatusOK, result, nil)
}

func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	if workspace == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "workspace query parameter is required"))
		return
	}

	logsDir := wspkg.New(workspace).Logs()
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		writeErr(w, apierrors.New(apierrors.CodeMissingFile, "no logs found for workspace: "+workspace))
		return
	}

	logs := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(logsDir, e.Name()))
		if err != nil {
			continue
		}
		logs[e.Name()] = string(data)
	}
	writeOK(w, http.StatusOK, logs, nil)
}

func (s *Server) listScorersHandler(w http.ResponseWriter, r *http.Request) {
	names := s.reg.List()
	out := make([]map[string]string, 0, len(names))
	for name, class := range names {
		out = append(out, map[string]string{"name": name, "class": class})
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["name"] < out[j]["name"] })
	writeOK(w, http.StatusOK, out, nil)
}

type scorerPathRequest struct {
	FilePath string `json:"file_path"`
	DirPath  string `json:"dir_path"`
	Pattern  string `json:"pattern"`
}

func (s *Server) loadScorerHandler(w http.ResponseWriter, r *http.Request) {
	var req scorerPathRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if req.DirPath != "" {
		pattern := req.Pattern
		if pattern == "" {
			pattern = "*"
		}
		loaded, err := s.reg.LoadFromDirectory(req.DirPath, pattern)
		if err != nil {
			writeErr(w, apierrors.New(apierrors.CodeMissingFile, err.Error()))
			return
		}
		writeOK(w, http.StatusOK, loaded, nil)
		return
	}
	if req.FilePath == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "file_path or dir_path is required"))
		return
	}
	loaded, err := s.reg.LoadFromFile(req.FilePath, false)
	if err != nil {
		writeErr(w, apierrors.New(apierrors.CodeMissingFile, err.Error()))
		return
	}
	writeOK(w, http.StatusOK, loaded, nil)
}

func (s *Server) reloadScorerHandler(w http.ResponseWriter, r *http.Request) {
	var req scorerPathRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.FilePath == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "file_path is required"))
		return
	}

	loaded, err := s.reg.Reload(req.FilePath)
	if err != nil {
		writeErr(w, apierrors.New(apierrors.CodeMissingFile, err.Error()))
		return
	}
	writeOK(w, http.StatusOK, loaded, nil)
}

type watchRequest struct {
	FilePath   string `json:"file_path"`
	IntervalMS int     `json:"interval_ms"`
}

func (s *Server) watchScorerHandler(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.FilePath == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "file_path is required"))
		return
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		writeErr(w, apierrors.New(apierrors.CodeMissingFile, "scorer file not found: "+req.FilePath))
		return
	}

	interval := defaultWatchInterval
	if req.IntervalMS > 0 {
		interval = msToDuration(req.IntervalMS)
	}
	s.reg.StartWatching(req.FilePath, interval)
	writeOK(w, http.StatusOK, map[string]any{"watching": req.FilePath}, nil)
}

func (s *Server) unwatchScorerHandler(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("file_path")
	if filePath == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "file_path query parameter is required"))
		return
	}
	stopped := s.reg.StopWatching(filePath)
	writeOK(w, http.StatusOK, map[string]any{"stopped": stopped}, nil)
}

func (s *Server) listWatchHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, s.reg.WatchedFiles(), nil)
}

type testScorerRequest struct {
	Workspace string         `json:"workspace"`
	Scorer    string         `json:"scorer"`
	Params    map[string]any `json:"params"`
}

func (s *Server) testScorerHandler(w http.ResponseWriter, r *http.Request) {
	var req testScorerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Workspace == "" || req.Scorer == "" {
		writeErr(w, apierrors.New(apierrors.CodeBadFormat, "workspace and scorer are required"))
		return
	}

	sc, err := s.reg.Get(req.Scorer)
	if err != nil {
		writeErr(w, apierrors.New(apierrors.CodeScorerNotFound, req.Scorer))
		return
	}

	result, err := sc.Score(r.Context(), req.Workspace, req.Params)
	if err != nil {
		writeErr(w, apierrors.FromError(err, apierrors.CodeScoreError, "score"))
		return
	}
	writeOK(w, http.StatusOK, result, nil)
}
