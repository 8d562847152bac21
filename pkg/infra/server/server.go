package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kart-io/logger"
)

// DefaultShutdownTimeout bounds Stop when Run handles the shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithShutdownTimeout sets the graceful shutdown timeout used by Run.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownTimeout = d
		}
	}
}

// WithServers registers servers at construction time.
func WithServers(servers ...Runnable) Option {
	return func(m *Manager) {
		m.servers = append(m.servers, servers...)
	}
}

// Manager manages multiple servers with unified lifecycle.
// Servers start in registration order and stop in reverse order.
type Manager struct {
	shutdownTimeout time.Duration
	servers         []Runnable
	mu              sync.Mutex
	started         []Runnable
	running         bool
}

// NewManager creates a new server manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{shutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddServer adds a server to the manager. It must be called before Start.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts all servers. If one fails, the servers already started are
// stopped again before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.running = true
	servers := append([]Runnable(nil), m.servers...)
	m.mu.Unlock()

	for _, server := range servers {
		if err := server.Start(ctx); err != nil {
			if stopErr := m.Stop(ctx); stopErr != nil {
				logger.Warnw("rollback after failed start", "error", stopErr.Error())
			}
			return fmt.Errorf("failed to start server %s: %w", server.Name(), err)
		}
		logger.Infow("server started", "name", server.Name())

		m.mu.Lock()
		m.started = append(m.started, server)
		m.mu.Unlock()
	}
	return nil
}

// Stop stops every started server in reverse order and joins their errors.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.started = nil
	m.running = false
	m.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		server := started[i]
		if err := server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", server.Name(), err))
			continue
		}
		logger.Infow("server stopped", "name", server.Name())
	}
	return errors.Join(errs...)
}

// Run starts all servers and blocks until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down within the configured timeout.
func (m *Manager) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
	defer cancel()
	return m.Stop(shutdownCtx)
}
