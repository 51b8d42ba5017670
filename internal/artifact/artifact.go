// Package artifact computes the file metadata (size, sha256) recorded
// against a Result document and enumerates a workspace's output artifacts,
// grounded on the original _make_classification_artifacts/Result.artifacts
// conventions.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/R3E-Network/autoscorer/internal/resultdoc"
)

// Describe computes size and sha256 for the file at path.
func Describe(path string) (resultdoc.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return resultdoc.Artifact{}, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return resultdoc.Artifact{}, err
	}
	return resultdoc.Artifact{
		Path:   path,
		Size:   size,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Enumerate walks ws/output/artifacts, recording each regular file under a
// logical name derived from its path relative to ws.
func Enumerate(ws string) (map[string]resultdoc.Artifact, error) {
	root := filepath.Join(ws, "output", "artifacts")
	out := map[string]resultdoc.Artifact{}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}

	return enumerateDir(ws, root, entries, out)
}

// EnumeratePredictions records every regular file directly under ws/output
// (the contestant-produced prediction files), excluding the artifacts/
// subtree (covered separately by Enumerate) and the result document itself.
func EnumeratePredictions(ws string) (map[string]resultdoc.Artifact, error) {
	dir := filepath.Join(ws, "output")
	out := map[string]resultdoc.Artifact{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}

	for _, e := range entries {
		if e.IsDir() || e.Name() == resultdoc.FileName {
			continue
		}
		full := filepath.Join(dir, e.Name())
		rel, err := filepath.Rel(ws, full)
		if err != nil {
			rel = full
		}
		desc, err := Describe(full)
		if err != nil {
			continue
		}
		out[rel] = desc
	}
	return out, nil
}

func enumerateDir(ws, dir string, entries []os.DirEntry, out map[string]resultdoc.Artifact) (map[string]resultdoc.Artifact, error) {
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			sub, err := os.ReadDir(full)
			if err != nil {
				continue
			}
			if _, err := enumerateDir(ws, full, sub, out); err != nil {
				return nil, err
			}
			continue
		}
		rel, err := filepath.Rel(ws, full)
		if err != nil {
			rel = full
		}
		desc, err := Describe(full)
		if err != nil {
			continue
		}
		out[rel] = desc
	}
	return out, nil
}
