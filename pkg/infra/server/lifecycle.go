// Package server runs the long lived components of a process (the HTTP
// listener, background pools) under one start/stop lifecycle.
package server

import "context"

// Lifecycle defines the lifecycle interface for servers.
type Lifecycle interface {
	// Start starts the server. It must not block once the server is serving.
	Start(ctx context.Context) error
	// Stop stops the server gracefully.
	Stop(ctx context.Context) error
}

// Runnable represents a component that can be started and stopped.
type Runnable interface {
	Lifecycle
	// Name returns the server name for identification.
	Name() string
}

// StopFunc adapts a shutdown function, such as closing a client or draining
// a worker pool, into a Runnable with a no-op Start.
type StopFunc struct {
	name string
	stop func(ctx context.Context) error
}

// NewStopFunc creates a StopFunc.
func NewStopFunc(name string, stop func(ctx context.Context) error) *StopFunc {
	return &StopFunc{name: name, stop: stop}
}

// Name returns the component name.
func (s *StopFunc) Name() string { return s.name }

// Start does nothing.
func (s *StopFunc) Start(context.Context) error { return nil }

// Stop runs the wrapped function.
func (s *StopFunc) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	return s.stop(ctx)
}
