// Package lifecycle defines the deterministic start/stop contract shared by
// every long-running AutoScorer component, grounded on the teacher's
// internal/app/system.Service interface.
package lifecycle

import "context"

// Service represents a lifecycle-managed component. The binary entrypoint
// wraps the HTTP server and the async worker pool in Services so it can
// start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// StartAll starts services in order, stopping any already-started service
// and returning the first error encountered.
func StartAll(ctx context.Context, services []Service) error {
	started := make([]Service, 0, len(services))
	for _, s := range services {
		if err := s.Start(ctx); err != nil {
			StopAll(ctx, started)
			return err
		}
		started = append(started, s)
	}
	return nil
}

// StopAll stops services in reverse start order, collecting but not
// aborting on individual errors.
func StopAll(ctx context.Context, services []Service) error {
	var firstErr error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
