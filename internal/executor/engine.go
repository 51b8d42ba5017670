// Package executor runs a job's contestant image to completion, producing
// output/ artifacts and logs/container.log, grounded on the original
// DockerExecutor.run.
package executor

import (
	"context"

	"github.com/R3E-Network/autoscorer/internal/manifest"
)

// Engine executes one job against a prepared workspace.
type Engine interface {
	Run(ctx context.Context, spec *manifest.JobSpec, workspace string) error
}

// ImageResolution records the image resolution decision, written to
// logs/run_info.json for every run.
type ImageResolution struct {
	ImageRequested    string `json:"image_requested"`
	ImageResolved     string `json:"image_resolved"`
	ImagePresentLocal bool   `json:"image_present_local"`
	ImageID           string `json:"image_id,omitempty"`
	PullPolicy        string `json:"pull_policy"`
	Action            string `json:"action"`
	EngineHost        string `json:"engine_host"`

	// WorkspacePathSubstituted records whether translateToHostPath rewrote
	// the container-visible workspace path to a host-visible one for the
	// bind mounts below, and what substitution was actually performed.
	WorkspacePathSubstituted bool   `json:"workspace_path_substituted"`
	WorkspaceRequested       string `json:"workspace_requested,omitempty"`
	WorkspaceHost            string `json:"workspace_host,omitempty"`
}
