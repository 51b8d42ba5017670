package executor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/R3E-Network/autoscorer/internal/config"
)

// translateToHostPath rewrites a container-visible workspace path to the
// corresponding host-visible path, required when the engine's control
// socket is a local unix domain socket: the bind-mount source is resolved
// by the engine daemon against the host filesystem, not this process's
// mount namespace. If no root pair matches, ws is returned unchanged.
func translateToHostPath(ws string, paths config.PathsConfig) string {
	containerProject := paths.ContainerProjectRoot
	if containerProject == "" {
		containerProject = "/app"
	}
	hostProject := paths.HostProjectRoot
	containerExamples := paths.ContainerExamplesRoot
	if containerExamples == "" {
		containerExamples = "/data/examples"
	}
	hostExamples := paths.HostExamplesRoot
	if hostExamples == "" && hostProject != "" {
		hostExamples = filepath.Join(hostProject, "examples")
	}

	if hostProject != "" && strings.HasPrefix(ws, containerProject+"/") {
		return filepath.Join(hostProject, strings.TrimPrefix(ws, containerProject))
	}
	if hostExamples != "" && strings.HasPrefix(ws, containerExamples+"/") {
		return filepath.Join(hostExamples, strings.TrimPrefix(ws, containerExamples))
	}
	return ws
}

// isLocalEngineHost reports whether host addresses a local unix domain
// socket, the case in which path translation is necessary.
func isLocalEngineHost(host string) bool {
	return strings.HasPrefix(host, "unix://") || host == ""
}

// resolveEngineHost picks the docker host: explicit override, then
// config/env DOCKER_HOST, then the default local socket.
func resolveEngineHost(override string, cfg config.ExecutorConfig) string {
	if override != "" {
		return override
	}
	if cfg.DockerHost != "" {
		return cfg.DockerHost
	}
	if env := os.Getenv("DOCKER_HOST"); env != "" {
		return env
	}
	return "unix:///var/run/docker.sock"
}

// networkMode maps a job's network_policy to a docker network mode.
func networkMode(policy string) string {
	switch strings.ToLower(policy) {
	case "", "none":
		return "none"
	case "host", "bridge":
		return strings.ToLower(policy)
	case "restricted":
		return "none"
	case "allowlist":
		return "bridge"
	default:
		return policy
	}
}
