// Package scorer defines the scorer contract and a thread-safe, hot
// reloadable registry, grounded on the original ScorerRegistry and the
// teacher's sandbox.Manager / enclave registry locking conventions.
package scorer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/autoscorer/internal/resultdoc"
)

// Scorer is the mandatory contract every registered scorer implements.
type Scorer interface {
	Score(ctx context.Context, workspace string, params map[string]any) (*resultdoc.Result, error)
}

// Validatable is the optional pre-check contract; when implemented it runs
// before Score to surface scorer-specific issues with a typed error.
type Validatable interface {
	Validate(ctx context.Context, workspace string, params map[string]any) error
}

// Factory constructs a fresh Scorer instance.
type Factory func() Scorer

// fileEntry tracks a dynamically loaded source file's last-seen mtime.
type fileEntry struct {
	mtime time.Time
}

// Registry is a process-wide, concurrency-safe name -> factory mapping.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	classNames map[string]string
	loaded     map[string]fileEntry
	watchers   map[string]context.CancelFunc
	log        *logrus.Logger
}

// New returns an empty Registry.
func New(log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		factories:  make(map[string]Factory),
		classNames: make(map[string]string),
		loaded:     make(map[string]fileEntry),
		watchers:   make(map[string]context.CancelFunc),
		log:        log,
	}
}

// Register adds or replaces a named factory. Replacing an existing entry is
// allowed and logged. The factory is probed once to confirm it satisfies the
// scorer contract.
func (r *Registry) Register(name string, factory Factory, className string) error {
	if factory == nil {
		return fmt.Errorf("scorer %q: nil factory", name)
	}
	probe := factory()
	if probe == nil {
		return fmt.Errorf("scorer %q: factory produced nil scorer", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, replacing := r.factories[name]
	r.factories[name] = factory
	r.classNames[name] = className
	if replacing {
		r.log.WithField("scorer", name).Info("replaced existing scorer")
	} else {
		r.log.WithField("scorer", name).Info("registered scorer")
	}
	return nil
}

// Exists reports whether name is registered, without instantiating it.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve returns the factory for name.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("scorer %q not found", name)
	}
	return f, nil
}

// Get instantiates a fresh Scorer for name.
func (r *Registry) Get(name string) (Scorer, error) {
	f, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f(), nil
}

// List returns a snapshot of name -> class/type name.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.classNames))
	for k, v := range r.classNames {
		out[k] = v
	}
	return out
}

// Unregister removes name, reporting whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; !ok {
		return false
	}
	delete(r.factories, name)
	delete(r.classNames, name)
	return true
}

// Clear removes all registered scorers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
	r.classNames = make(map[string]string)
}

// recordLoad marks path as loaded at mtime. Called by loaders after a
// successful, all-or-nothing registration pass.
func (r *Registry) recordLoad(path string, mtime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[path] = fileEntry{mtime: mtime}
}

// shouldSkip reports whether path's recorded mtime is already >= current,
// meaning a non-forced load is a no-op.
func (r *Registry) shouldSkip(path string, current time.Time, force bool) bool {
	if force {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.loaded[path]
	if !ok {
		return false
	}
	return !entry.mtime.Before(current)
}

// watchKey normalizes a path for use as a watcher map key.
func watchKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// StopWatching signals the watcher for path to terminate, reporting whether
// one was running.
func (r *Registry) StopWatching(path string) bool {
	key := watchKey(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.watchers[key]
	if !ok {
		return false
	}
	cancel()
	delete(r.watchers, key)
	return true
}

// StopAll terminates every running watcher.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, cancel := range r.watchers {
		cancel()
		delete(r.watchers, path)
	}
}

// WatchedFiles returns the paths currently being watched.
func (r *Registry) WatchedFiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.watchers))
	for path := range r.watchers {
		out = append(out, path)
	}
	return out
}
