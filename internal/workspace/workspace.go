// Package workspace models the standard run directory layout: input/,
// output/, logs/, and the meta.json manifest at the workspace root.
package workspace

import (
	"os"
	"path/filepath"
)

// Workspace wraps a root directory with the standard subpaths.
type Workspace struct {
	Root string
}

// New returns a Workspace rooted at root. It does not touch the filesystem.
func New(root string) *Workspace {
	return &Workspace{Root: root}
}

// Input returns the input/ subdirectory path.
func (w *Workspace) Input() string { return filepath.Join(w.Root, "input") }

// Output returns the output/ subdirectory path.
func (w *Workspace) Output() string { return filepath.Join(w.Root, "output") }

// Logs returns the logs/ subdirectory path.
func (w *Workspace) Logs() string { return filepath.Join(w.Root, "logs") }

// Meta returns the meta.json manifest path.
func (w *Workspace) Meta() string { return filepath.Join(w.Root, "meta.json") }

// Result returns the output/result.json path.
func (w *Workspace) Result() string { return filepath.Join(w.Output(), "result.json") }

// EnsureWritableDirs best-effort creates output/ and logs/ if missing,
// mirroring the validator's auto-create behavior for non-required paths.
func (w *Workspace) EnsureWritableDirs() error {
	for _, dir := range []string{w.Output(), w.Logs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether the workspace root exists and is a directory.
func (w *Workspace) Exists() bool {
	info, err := os.Stat(w.Root)
	return err == nil && info.IsDir()
}
