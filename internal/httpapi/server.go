// Package httpapi exposes the REST surface described in spec §6: pipeline
// operations, async submission/status, result/log retrieval, and scorer
// registry management, grounded on the teacher's gorilla/mux routing and
// httputil.WriteJSON envelope conventions (cmd/gateway).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/autoscorer/internal/asynctask"
	"github.com/R3E-Network/autoscorer/internal/orchestrator"
	"github.com/R3E-Network/autoscorer/internal/scorer"
)

// Server holds the dependencies handlers need.
type Server struct {
	orch     *orchestrator.Orchestrator
	reg      *scorer.Registry
	tasks    *asynctask.Manager
	log      *logrus.Logger
	registry *prometheus.Registry
}

// NewServer constructs a Server. tasks may be nil if async submission is
// disabled. /metrics is registered only after WithMetricsRegistry supplies a
// registry.
func NewServer(orch *orchestrator.Orchestrator, reg *scorer.Registry, tasks *asynctask.Manager, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{orch: orch, reg: reg, tasks: tasks, log: log}
}

// WithMetricsRegistry enables GET /metrics backed by registry.
func (s *Server) WithMetricsRegistry(registry *prometheus.Registry) *Server {
	s.registry = registry
	return s
}

// NewRouter builds the full route table.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/run", s.runHandler).Methods(http.MethodPost)
	r.HandleFunc("/score", s.scoreHandler).Methods(http.MethodPost)
	r.HandleFunc("/pipeline", s.pipelineHandler).Methods(http.MethodPost)

	r.HandleFunc("/submit", s.submitHandler).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{task_id}", s.taskStatusHandler).Methods(http.MethodGet)

	r.HandleFunc("/result", s.resultHandler).Methods(http.MethodGet)
	r.HandleFunc("/logs", s.logsHandler).Methods(http.MethodGet)

	r.HandleFunc("/scorers", s.listScorersHandler).Methods(http.MethodGet)
	r.HandleFunc("/scorers/load", s.loadScorerHandler).Methods(http.MethodPost)
	r.HandleFunc("/scorers/reload", s.reloadScorerHandler).Methods(http.MethodPost)
	r.HandleFunc("/scorers/watch", s.watchScorerHandler).Methods(http.MethodPost)
	r.HandleFunc("/scorers/watch", s.unwatchScorerHandler).Methods(http.MethodDelete)
	r.HandleFunc("/scorers/watch", s.listWatchHandler).Methods(http.MethodGet)
	r.HandleFunc("/scorers/test", s.testScorerHandler).Methods(http.MethodPost)

	return r
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"status": "healthy"}, nil)
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{
		"service": "autoscorer",
		"endpoints": []string{
			"/healthz", "/run", "/score", "/pipeline", "/submit", "/tasks/{task_id}",
			"/result", "/logs", "/scorers", "/scorers/load", "/scorers/reload",
			"/scorers/watch", "/scorers/test",
		},
	}, nil)
}

// defaultWatchInterval is the polling interval used when a caller does not
// specify one.
const defaultWatchInterval = 2 * time.Second
