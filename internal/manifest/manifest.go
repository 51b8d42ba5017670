// Package manifest decodes and validates the job manifest (meta.json) that
// drives one AutoScorer run, grounded on the original JobSpec/Resources/
// ContainerSpec pydantic models.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/R3E-Network/autoscorer/internal/sizestring"
)

// Resources describes the compute envelope requested for a run.
type Resources struct {
	CPU    float64 `json:"cpu"`
	Memory string  `json:"memory"`
	GPUs   int     `json:"gpus"`
}

// ContainerSpec describes the image and runtime parameters for a containerized run.
type ContainerSpec struct {
	Image         string            `json:"image"`
	Cmd           []string          `json:"cmd,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	ShmSize       string            `json:"shm_size,omitempty"`
	GPUs          *int              `json:"gpus,omitempty"`
	NetworkPolicy string            `json:"network_policy,omitempty"` // none|host|bridge|restricted|allowlist|<custom network name>
}

// JobSpec is the decoded meta.json manifest for a workspace.
type JobSpec struct {
	JobID     string        `json:"job_id"`
	TaskType  string        `json:"task_type"`
	Scorer    string        `json:"scorer"`
	InputURI  string        `json:"input_uri"`
	OutputURI string        `json:"output_uri"`
	TimeLimit int           `json:"time_limit"`
	Resources Resources     `json:"resources"`
	Container ContainerSpec `json:"container"`
}

const defaultTimeLimit = 1800

// FileName is the manifest's expected basename within a workspace.
const FileName = "meta.json"

// FromWorkspace reads and decodes meta.json from ws, filling defaults the
// way the original JobSpec model does (Resources defaults, TimeLimit default).
func FromWorkspace(ws string) (*JobSpec, error) {
	path := filepath.Join(ws, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found in %s", FileName, ws)
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes raw JSON bytes into a JobSpec, applying defaults.
func Parse(data []byte) (*JobSpec, error) {
	spec := &JobSpec{
		Resources: Resources{CPU: 1.0, Memory: "2Gi", GPUs: 0},
		TimeLimit: defaultTimeLimit,
	}
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if spec.TimeLimit <= 0 {
		spec.TimeLimit = defaultTimeLimit
	}
	if spec.Resources.Memory == "" {
		spec.Resources.Memory = "2Gi"
	}
	return spec, nil
}

// Validate checks required fields and the resources grammar.
func (j *JobSpec) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if j.Scorer == "" {
		return fmt.Errorf("scorer is required")
	}
	if j.Container.Image == "" {
		return fmt.Errorf("container.image is required")
	}
	if !sizestring.Valid(j.Resources.Memory) {
		return fmt.Errorf("invalid resources.memory: %q", j.Resources.Memory)
	}
	if j.Container.ShmSize != "" && !sizestring.Valid(j.Container.ShmSize) {
		return fmt.Errorf("invalid container.shm_size: %q", j.Container.ShmSize)
	}
	if !validNetworkPolicy(j.Container.NetworkPolicy) {
		return fmt.Errorf("invalid container.network_policy: %q", j.Container.NetworkPolicy)
	}
	return nil
}

// validNetworkPolicy accepts the recognized policy names plus any custom
// network name, matching what internal/executor's networkMode resolves
// against the docker daemon. Custom names with leading or trailing
// whitespace are rejected; an empty policy is accepted.
func validNetworkPolicy(policy string) bool {
	switch policy {
	case "", "none", "host", "bridge", "restricted", "allowlist":
		return true
	default:
		return strings.TrimSpace(policy) == policy && policy != ""
	}
}

// EffectiveGPUs resolves the container-level GPU override against the
// resources-level request, container override taking precedence.
func (j *JobSpec) EffectiveGPUs() int {
	if j.Container.GPUs != nil {
		return *j.Container.GPUs
	}
	return j.Resources.GPUs
}
