// Command autoscorer serves the AutoScorer REST API and doubles as a CLI
// for one-shot validate/run/score/pipeline/submit invocations, grounded on
// the teacher's cmd/appserver entrypoint (config/flag wiring, graceful
// shutdown) and cmd/slcli (subcommand dispatch).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/autoscorer/internal/asynctask"
	"github.com/R3E-Network/autoscorer/internal/asynctask/broker"
	"github.com/R3E-Network/autoscorer/internal/cli"
	"github.com/R3E-Network/autoscorer/internal/config"
	"github.com/R3E-Network/autoscorer/internal/httpapi"
	"github.com/R3E-Network/autoscorer/internal/lifecycle"
	"github.com/R3E-Network/autoscorer/internal/metrics"
	"github.com/R3E-Network/autoscorer/internal/orchestrator"
	"github.com/R3E-Network/autoscorer/internal/scheduler"
	"github.com/R3E-Network/autoscorer/internal/scorer"
	"github.com/R3E-Network/autoscorer/internal/scorer/builtin"
	"github.com/R3E-Network/autoscorer/internal/taskstore"
	"github.com/R3E-Network/autoscorer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	reg := scorer.New(log.Logger)
	if err := builtin.RegisterAll(reg); err != nil {
		log.Fatalf("register builtin scorers: %v", err)
	}

	sched := scheduler.New(*cfg, log.Logger)
	orch := orchestrator.New(sched, reg, log.Logger)

	promReg := prometheus.NewRegistry()
	m := metrics.New()
	m.MustRegister(promReg)
	orch.SetMetrics(m)

	var tasks *asynctask.Manager
	if cfg.Async.Broker != "" {
		redisClient, err := broker.New(cfg.Async.Broker)
		if err != nil {
			log.Fatalf("connect to broker: %v", err)
		}
		store, err := taskstore.Open(context.Background(), cfg.Store.TaskDBPath)
		if err != nil {
			log.Fatalf("open task store: %v", err)
		}
		tasks = asynctask.NewManager(store, redisClient, orch, log.Logger)
	}

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		deps := cli.Deps{Orch: orch, Reg: reg, Tasks: tasks, Cfg: cfg}
		code := cli.Run(context.Background(), os.Args[1:], deps, os.Stdout, os.Stderr)
		os.Exit(code)
	}

	runServer(cfg, orch, reg, tasks, promReg, log)
}

func runServer(cfg *config.Config, orch *orchestrator.Orchestrator, reg *scorer.Registry, tasks *asynctask.Manager, promReg *prometheus.Registry, log *logger.Logger) {
	server := httpapi.NewServer(orch, reg, tasks, log.Logger).WithMetricsRegistry(promReg)
	router := httpapi.NewRouter(server)
	addr := serverAddr(cfg)

	services := []lifecycle.Service{&httpService{addr: addr, handler: router, log: log}}
	if tasks != nil {
		services = append([]lifecycle.Service{&workerPoolService{tasks: tasks, workers: config.EnvInt("ASYNC_WORKERS", 4), log: log}}, services...)
	}

	ctx := context.Background()
	if err := lifecycle.StartAll(ctx, services); err != nil {
		log.WithError(err).Fatal("failed to start services")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := lifecycle.StopAll(shutdownCtx, services); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// httpService adapts the REST API's http.Server to lifecycle.Service.
type httpService struct {
	addr    string
	handler http.Handler
	log     *logger.Logger
	srv     *http.Server
}

func (s *httpService) Name() string { return "http" }

func (s *httpService) Start(ctx context.Context) error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.handler}
	go func() {
		s.log.WithField("addr", s.addr).Info("autoscorer listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server failed")
		}
	}()
	return nil
}

func (s *httpService) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// workerPoolService adapts the async task manager's worker pool to
// lifecycle.Service.
type workerPoolService struct {
	tasks   *asynctask.Manager
	workers int
	log     *logger.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *workerPoolService) Name() string { return "async-workers" }

func (s *workerPoolService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.tasks.Run(runCtx, s.workers); err != nil {
			s.log.WithError(err).Error("async worker pool exited")
		}
	}()
	return nil
}

func (s *workerPoolService) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

func serverAddr(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == 0 {
		port = 8000
	}
	return fmt.Sprintf("%s:%d", host, port)
}
