// Package validator implements the workspace validator (spec component
// 4.1): directory layout and manifest well-formedness checks, grounded on
// the original validate_workspace/_validate_memory_format routines.
package validator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/sizestring"
	"github.com/R3E-Network/autoscorer/internal/workspace"
)

// ScorerResolver reports whether a named scorer is registered, without
// instantiating it. internal/scorer.Registry satisfies this interface.
type ScorerResolver interface {
	Exists(name string) bool
}

// Result is the ordered validation outcome: OK is false iff Errors is
// non-empty, and the first error dictates the surfaced code.
type Result struct {
	OK     bool
	Errors []string
}

// FirstCode extracts the canonical code prefix of the first error, or ""
// if the validation passed.
func (r Result) FirstCode() string {
	if len(r.Errors) == 0 {
		return ""
	}
	for i, c := range r.Errors[0] {
		if c == ':' {
			return r.Errors[0][:i]
		}
	}
	return ""
}

func (r *Result) fail(code, format string, args ...any) {
	r.OK = false
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", code, fmt.Sprintf(format, args...)))
}

// Validate checks the workspace layout and meta.json contents at ws.
// scorers may be nil, in which case the scorer-existence check is skipped.
func Validate(ws string, scorers ScorerResolver) Result {
	res := Result{OK: true}

	type pathSpec struct {
		name     string
		isDir    bool
		required bool
	}
	required := []pathSpec{
		{"input", true, true},
		{"meta.json", false, true},
		{"output", true, false},
		{"logs", true, false},
	}

	for _, spec := range required {
		path := filepath.Join(ws, spec.name)
		info, err := os.Stat(path)
		switch {
		case err != nil && os.IsNotExist(err):
			if spec.required {
				res.fail(apierrors.CodeMissingFile, "%s", spec.name)
				continue
			}
			if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
				res.fail(apierrors.CodePermissionError, "cannot create %s: %v", spec.name, mkErr)
				continue
			}
			if !writable(path) {
				res.fail(apierrors.CodePermissionError, "cannot create writable %s", spec.name)
			}
		case err != nil:
			res.fail(apierrors.CodePermissionError, "%s: %v", spec.name, err)
		default:
			if spec.isDir {
				if !readable(path) {
					res.fail(apierrors.CodePermissionError, "%s not readable", spec.name)
				}
				if (spec.name == "output" || spec.name == "logs") && !writable(path) {
					res.fail(apierrors.CodePermissionError, "%s not writable", spec.name)
				}
			} else if !readable(path) {
				res.fail(apierrors.CodePermissionError, "%s not readable", spec.name)
			}
			_ = info
		}
	}

	metaPath := workspace.New(ws).Meta()
	if data, err := os.ReadFile(metaPath); err == nil {
		validateMeta(&res, data, scorers)
	} else if !os.IsNotExist(err) {
		res.fail(apierrors.CodeParseError, "meta.json error: %v", err)
	}

	return res
}

func validateMeta(res *Result, data []byte, scorers ScorerResolver) {
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		res.fail(apierrors.CodeParseError, "meta.json invalid JSON: %v", err)
		return
	}

	for _, field := range []string{"job_id", "task_type", "scorer", "input_uri", "output_uri"} {
		if _, ok := meta[field]; !ok {
			res.fail(apierrors.CodeBadFormat, "meta.json missing field: %s", field)
		}
	}

	if rawResources, ok := meta["resources"].(map[string]any); ok {
		if cpuRaw, ok := rawResources["cpu"]; ok {
			if cpu, ok := asFloat(cpuRaw); !ok {
				res.fail(apierrors.CodeInvalidResources, "cpu must be a number")
			} else if cpu <= 0 {
				res.fail(apierrors.CodeInvalidResources, "cpu must be > 0")
			}
		}
		if memRaw, ok := rawResources["memory"]; ok {
			if mem, ok := memRaw.(string); !ok || !sizestring.Valid(mem) {
				res.fail(apierrors.CodeInvalidResources, "invalid memory format: %v", memRaw)
			}
		}
		if gpusRaw, ok := rawResources["gpus"]; ok {
			if gpus, ok := asFloat(gpusRaw); !ok {
				res.fail(apierrors.CodeInvalidResources, "gpus must be an integer")
			} else if gpus < 0 {
				res.fail(apierrors.CodeInvalidResources, "gpus must be >= 0")
			}
		}
	}

	if scorerName, ok := meta["scorer"].(string); ok && scorers != nil {
		if !scorers.Exists(scorerName) {
			res.fail(apierrors.CodeScorerNotFound, "%s", scorerName)
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func writable(path string) bool {
	probe := filepath.Join(path, ".autoscorer-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}
