// Package scheduler selects which executor backend runs a job: the cluster
// API, a specific engine host, a GPU-preferred node, or the local Docker
// daemon, grounded on the original Scheduler.select_executor.
package scheduler

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/config"
	"github.com/R3E-Network/autoscorer/internal/executor"
	"github.com/R3E-Network/autoscorer/internal/executor/cluster"
)

// node is one entry of the configured node list.
type node struct {
	Host string `json:"host"`
	GPUs int    `json:"gpus"`
}

// Scheduler picks an Engine for a job per spec §4.4.
type Scheduler struct {
	cfg config.Config
	log *logrus.Logger
}

// New returns a Scheduler bound to cfg.
func New(cfg config.Config, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{cfg: cfg, log: log}
}

// SelectExecutor picks an Engine, honoring hint as an explicit engine-host
// override (the highest-priority rule). An empty hint falls through to the
// configured rules in order: cluster, configured engine host, GPU-sorted
// node list, local daemon.
func (s *Scheduler) SelectExecutor(hint string) (executor.Engine, error) {
	if hint != "" {
		return s.localEngine(hint)
	}

	if s.cfg.Kubernetes.Enabled {
		eng, err := cluster.New(s.cfg.Kubernetes)
		if err == nil {
			s.log.Info("using cluster executor")
			return eng, nil
		}
		s.log.WithError(err).Warn("cluster executor unavailable, falling back to docker")
	}

	if s.cfg.Cluster.EngineHost != "" {
		s.log.WithField("host", s.cfg.Cluster.EngineHost).Info("using configured engine host")
		return s.localEngine(s.cfg.Cluster.EngineHost)
	}

	if s.cfg.Cluster.DockerNodesEnabled && s.cfg.Cluster.Nodes != "" {
		selected, err := selectGPUNode(s.cfg.Cluster.Nodes)
		if err != nil {
			return nil, apierrors.New(apierrors.CodeSchedulerError, err.Error())
		}
		if selected != "" {
			s.log.WithField("host", selected).Info("selected GPU-preferred node")
			return s.localEngine(selected)
		}
	}

	s.log.Info("using local docker daemon")
	return s.localEngine("")
}

func (s *Scheduler) localEngine(host string) (executor.Engine, error) {
	eng, err := executor.NewDockerExecutor(s.cfg.Executor, s.cfg.Paths, host, s.log)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeSchedulerError, fmt.Sprintf("failed to initialize executor: %v", err))
	}
	return eng, nil
}

// selectGPUNode parses a JSON node list and returns the host with the
// highest GPU count, preferring the original list order on ties.
func selectGPUNode(raw string) (string, error) {
	var nodes []node
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		return "", fmt.Errorf("invalid node list: %w", err)
	}
	if len(nodes) == 0 {
		return "", nil
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].GPUs > nodes[j].GPUs })
	return nodes[0].Host, nil
}
