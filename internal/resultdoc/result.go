// Package resultdoc defines the normalized scoring Result document and its
// atomic write-to-workspace semantics, grounded on the original Result
// pydantic model.
package resultdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Artifact describes one generated output file.
type Artifact struct {
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	SHA256   string         `json:"sha256"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is the standardized scoring result. Every scorer must produce this
// shape so downstream consumers see a consistent contract.
type Result struct {
	Summary    map[string]any      `json:"summary"`
	Metrics    map[string]float64  `json:"metrics"`
	Artifacts  map[string]Artifact `json:"artifacts"`
	Timing     map[string]float64  `json:"timing"`
	Resources  map[string]float64  `json:"resources"`
	Versioning map[string]string   `json:"versioning"`
	Error      map[string]any      `json:"error,omitempty"`
}

// New returns a Result with every map field initialized, matching the
// original model's default_factory behavior so callers never nil-panic.
func New() *Result {
	return &Result{
		Summary:    map[string]any{},
		Metrics:    map[string]float64{},
		Artifacts:  map[string]Artifact{},
		Timing:     map[string]float64{},
		Resources:  map[string]float64{},
		Versioning: map[string]string{},
	}
}

// FileName is the result document's expected basename within a workspace's
// output/ directory.
const FileName = "result.json"

// WriteAtomic serializes r and writes it to ws/output/result.json
// atomically: the body is written to a temp file in the same directory,
// fsynced, then renamed into place. The returned sha256 is of the written
// body; it is not recorded inside the document itself.
func WriteAtomic(ws string, r *Result) (sha256Hex string, err error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	outputDir := filepath.Join(ws, "output")
	if err = os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	dest := filepath.Join(outputDir, FileName)
	tmp, err := os.CreateTemp(outputDir, ".result-*.json.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp result file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	if _, err = tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp result file: %w", err)
	}
	if _, err = h.Write(body); err != nil {
		tmp.Close()
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp result file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("rename result file into place: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load reads and decodes ws/output/result.json.
func Load(ws string) (*Result, error) {
	path := filepath.Join(ws, "output", FileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	r := New()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return r, nil
}

// SetError replaces the result's error field with the canonical envelope
// shape: {code, message, stage, details}.
func (r *Result) SetError(code, message, stage string, details map[string]any) {
	r.Error = map[string]any{
		"code":    code,
		"message": message,
	}
	if stage != "" {
		r.Error["stage"] = stage
	}
	if details != nil {
		r.Error["details"] = details
	}
}
