package scorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/autoscorer/internal/scorer/plug"
	"github.com/R3E-Network/autoscorer/internal/scorer/script"
)

// LoadFromFile loads path as a dynamic scorer source: a ".js" file is
// evaluated by the embedded script engine, a ".so" file is loaded as a
// compiled plugin. On success the declared scorer is registered under its
// self-reported name (or the file's base name lowercased, if the source
// declares none). A failed load leaves the registry untouched.
//
// If force is false and path's recorded mtime is already current, the load
// is skipped (returns an empty map, nil error).
func (r *Registry) LoadFromFile(path string, force bool) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scorer file not found: %s", path)
	}
	if r.shouldSkip(path, info.ModTime(), force) {
		return map[string]string{}, nil
	}

	name, factory, class, err := loadDynamicScorer(path)
	if err != nil {
		return nil, err
	}
	if err := r.Register(name, factory, class); err != nil {
		return nil, err
	}
	r.recordLoad(path, info.ModTime())
	r.log.WithField("path", path).WithField("scorer", name).Info("loaded dynamic scorer")
	return map[string]string{name: class}, nil
}

func loadDynamicScorer(path string) (name string, factory Factory, class string, err error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".js":
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", nil, "", readErr
		}
		s, loadErr := script.Load(string(data))
		if loadErr != nil {
			return "", nil, "", fmt.Errorf("load script %s: %w", path, loadErr)
		}
		scorerName := s.Name
		if scorerName == "" {
			scorerName = strings.ToLower(strings.TrimSuffix(filepath.Base(path), ext))
		}
		return scorerName, func() Scorer { return s }, "ScriptScorer", nil
	case ".so":
		pluginName, rawFactory, openErr := plug.Open(path)
		if openErr != nil {
			return "", nil, "", openErr
		}
		ctor, ok := rawFactory.(func() Scorer)
		if !ok {
			return "", nil, "", fmt.Errorf("plugin %s: %s has unexpected signature", path, plug.FactorySymbol)
		}
		scorerName := pluginName
		if scorerName == "" {
			scorerName = strings.ToLower(strings.TrimSuffix(filepath.Base(path), ext))
		}
		return scorerName, ctor, "CompiledScorer", nil
	default:
		return "", nil, "", fmt.Errorf("unsupported scorer source: %s", path)
	}
}

// LoadFromDirectory applies LoadFromFile to each file under dir matching
// pattern (a filepath.Match glob). Failures on individual files are logged
// and skipped; the call succeeds as long as the directory itself is
// readable.
func (r *Registry) LoadFromDirectory(dir, pattern string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("directory not found: %s", dir)
	}
	loaded := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matched, err := filepath.Match(pattern, e.Name())
		if err != nil || !matched {
			continue
		}
		path := filepath.Join(dir, e.Name())
		got, err := r.LoadFromFile(path, false)
		if err != nil {
			r.log.WithField("path", path).WithError(err).Error("failed to load scorer")
			continue
		}
		for name, class := range got {
			loaded[name] = class
		}
	}
	return loaded, nil
}

// Reload forces a reload of path, equivalent to LoadFromFile(path, true).
func (r *Registry) Reload(path string) (map[string]string, error) {
	return r.LoadFromFile(path, true)
}

// StartWatching spawns a background watcher that reloads path whenever its
// mtime advances, polling every interval. The first observation is recorded,
// not reloaded. Calling StartWatching twice for the same path is a no-op.
func (r *Registry) StartWatching(path string, interval time.Duration) {
	key := watchKey(path)

	r.mu.Lock()
	if _, already := r.watchers[key]; already {
		r.mu.Unlock()
		r.log.WithField("path", path).Warn("already watching file")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.watchers[key] = cancel
	r.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastMtime time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if info.ModTime().After(lastMtime) {
					if !lastMtime.IsZero() {
						if _, err := r.Reload(path); err != nil {
							r.log.WithField("path", path).WithError(err).Error("failed to reload scorer on change")
						}
					}
					lastMtime = info.ModTime()
				}
			}
		}
	}()

	r.log.WithField("path", path).Info("started watching scorer file")
}
