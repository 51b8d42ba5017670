// Package config loads AutoScorer's layered configuration: defaults,
// overlaid by a YAML file found on a search path, overlaid by environment
// variables, modeled on the teacher's pkg/config loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ExecutorConfig controls container execution defaults.
type ExecutorConfig struct {
	DockerHost       string `json:"docker_host" yaml:"docker_host" env:"DOCKER_HOST"`
	ImagePullPolicy  string `json:"image_pull_policy" yaml:"image_pull_policy" env:"IMAGE_PULL_POLICY"`
	DefaultCPU       string `json:"default_cpu" yaml:"default_cpu" env:"DEFAULT_CPU"`
	DefaultMemory    string `json:"default_memory" yaml:"default_memory" env:"DEFAULT_MEMORY"`
	DefaultGPU       int    `json:"default_gpu" yaml:"default_gpu" env:"DEFAULT_GPU"`
	DefaultShmSize   string `json:"default_shm_size" yaml:"default_shm_size" env:"DEFAULT_SHM_SIZE"`
	Timeout          int    `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	SecurityOpts     string `json:"security_opts" yaml:"security_opts" env:"SECURITY_OPTS"`
	RegistryURL      string `json:"registry_url" yaml:"registry_url" env:"REGISTRY_URL"`
	RegistryUser     string `json:"registry_user" yaml:"registry_user" env:"REGISTRY_USER"`
	RegistryPass     string `json:"registry_pass" yaml:"registry_pass" env:"REGISTRY_PASS"`
	PrintStacktrace  bool   `json:"print_stacktrace" yaml:"print_stacktrace" env:"PRINT_STACKTRACE"`
}

// KubernetesConfig controls the Kubernetes executor backend.
type KubernetesConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled" env:"K8S_ENABLED"`
	APIServer        string `json:"api_server" yaml:"api_server" env:"K8S_API"`
	Token            string `json:"token" yaml:"token" env:"K8S_TOKEN"`
	CACert           string `json:"ca_cert" yaml:"ca_cert" env:"K8S_CA_CERT"`
	Namespace        string `json:"namespace" yaml:"namespace" env:"K8S_NAMESPACE"`
	ImagePullSecret  string `json:"image_pull_secret" yaml:"image_pull_secret" env:"K8S_IMAGE_PULL_SECRET"`
}

// ClusterConfig controls distributed Docker node selection.
type ClusterConfig struct {
	Nodes              string `json:"nodes" yaml:"nodes" env:"NODES"`
	DockerNodesEnabled bool   `json:"docker_nodes_enabled" yaml:"docker_nodes_enabled" env:"DOCKER_NODES_ENABLED"`
	EngineHost         string `json:"engine_host" yaml:"engine_host" env:"ENGINE_HOST"`
}

// AsyncConfig controls the broker-backed async task queue.
type AsyncConfig struct {
	Broker  string `json:"broker" yaml:"broker" env:"CELERY_BROKER"`
	Backend string `json:"backend" yaml:"backend" env:"CELERY_BACKEND"`
}

// StoreConfig controls the task store.
type StoreConfig struct {
	TaskDBPath string `json:"task_db_path" yaml:"task_db_path" env:"TASK_DB_PATH"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
	Dir        string `json:"log_dir" yaml:"log_dir" env:"LOG_DIR"`
}

// PathsConfig controls the host/container path translation used when
// mounting workspaces from inside a containerized caller.
type PathsConfig struct {
	ContainerProjectRoot  string `json:"container_project_root" yaml:"container_project_root" env:"CONTAINER_PROJECT_ROOT"`
	HostProjectRoot       string `json:"host_project_root" yaml:"host_project_root" env:"HOST_PROJECT_ROOT"`
	ContainerExamplesRoot string `json:"container_examples_root" yaml:"container_examples_root" env:"CONTAINER_EXAMPLES_ROOT"`
	HostExamplesRoot      string `json:"host_examples_root" yaml:"host_examples_root" env:"HOST_EXAMPLES_ROOT"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// Config is the top-level AutoScorer configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Executor   ExecutorConfig   `json:"executor" yaml:"executor"`
	Kubernetes KubernetesConfig `json:"kubernetes" yaml:"kubernetes"`
	Cluster    ClusterConfig    `json:"cluster" yaml:"cluster"`
	Async      AsyncConfig      `json:"async" yaml:"async"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Paths      PathsConfig      `json:"paths" yaml:"paths"`
}

// New returns a configuration populated with defaults matching spec §6.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		Executor: ExecutorConfig{
			ImagePullPolicy: "ifnotpresent",
			DefaultCPU:      "2",
			DefaultMemory:   "4g",
			DefaultGPU:      0,
			DefaultShmSize:  "64m",
			Timeout:         3600,
		},
		Kubernetes: KubernetesConfig{Namespace: "default"},
		Async:      AsyncConfig{},
		Store:      StoreConfig{TaskDBPath: "data/tasks.db"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "autoscorer",
			Dir:        "logs",
		},
	}
}

// searchPaths returns the config file lookup order: cwd, project root,
// ~/.autoscorer/, /etc/autoscorer/.
func searchPaths() []string {
	paths := []string{"config.yaml", "configs/config.yaml"}
	if root := os.Getenv("AUTOSCORER_PROJECT_ROOT"); root != "" {
		paths = append(paths, filepath.Join(root, "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".autoscorer", "config.yaml"))
	}
	paths = append(paths, "/etc/autoscorer/config.yaml")
	return paths
}

// Load loads configuration by walking searchPaths (first hit wins), then
// applying environment variable overrides and a .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		for _, path := range searchPaths() {
			if err := loadFromFile(path, cfg); err != nil {
				return nil, err
			}
			if fileExists(path) {
				break
			}
		}
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the loaded configuration for internally-inconsistent or
// out-of-range values, grounded on the teacher's own Config.Validate
// port/mode sanity checks.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor.timeout must be positive, got %d", c.Executor.Timeout)
	}
	switch strings.ToLower(c.Executor.ImagePullPolicy) {
	case "always", "ifnotpresent", "never":
	default:
		return fmt.Errorf("executor.image_pull_policy invalid: %q", c.Executor.ImagePullPolicy)
	}
	if c.Kubernetes.Enabled && c.Kubernetes.APIServer == "" {
		return fmt.Errorf("kubernetes.api_server is required when kubernetes.enabled is true")
	}
	if c.Async.Broker != "" && c.Store.TaskDBPath == "" {
		return fmt.Errorf("store.task_db_path is required when async.broker is set")
	}
	return nil
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	if c.Executor.Timeout <= 0 {
		c.Executor.Timeout = 3600
	}
	c.Executor.ImagePullPolicy = strings.ToLower(strings.TrimSpace(c.Executor.ImagePullPolicy))
}

// EnvInt reads an integer environment variable, falling back to def.
func EnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
