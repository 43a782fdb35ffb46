// Package lifecycle starts and stops the service's components in dependency
// order.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/logsieve/logsieve/internal/logging"
)

type entry struct {
	component Component
	deps      []Component
}

// Manager tracks registered components and their dependencies. Dependencies
// must be registered before their dependents, so registration order is
// always a valid startup order and cycles cannot form.
type Manager struct {
	mu              sync.Mutex
	entries         []entry
	started         []Component
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates a manager with a 30 second per-component stop timeout.
func NewManager() *Manager {
	return &Manager{
		shutdownTimeout: 30 * time.Second,
		logger:          logging.GetLogger("lifecycle.manager"),
	}
}

// SetShutdownTimeout changes the per-component grace period used by Stop.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}

// Register adds a component. Every dependency must already be registered;
// the component starts after all of them and stops before any of them.
func (m *Manager) Register(component Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return errors.New("cannot register nil component")
	}
	if component.Name() == "" {
		return errors.New("component must have a non-empty name")
	}
	if m.find(component) >= 0 {
		return fmt.Errorf("component %s is already registered", component.Name())
	}
	for _, dep := range dependsOn {
		if m.find(dep) < 0 {
			return fmt.Errorf("dependency %s is not registered", dep.Name())
		}
	}

	m.entries = append(m.entries, entry{component: component, deps: dependsOn})
	m.logger.Debug("Registered component %s with %d dependencies", component.Name(), len(dependsOn))
	return nil
}

func (m *Manager) find(component Component) int {
	for i, e := range m.entries {
		if e.component == component {
			return i
		}
	}
	return -1
}

// Start brings every component up in registration order. On the first
// failure the components already running are stopped in reverse and the
// failure is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = m.started[:0]
	for _, e := range m.entries {
		name := e.component.Name()
		m.logger.Info("Starting %s", name)
		begin := time.Now()

		if err := e.component.Start(ctx); err != nil {
			m.logger.Error("Failed to start %s: %v", name, err)
			m.rollback()
			return fmt.Errorf("initialization failed for %s: %w", name, err)
		}

		m.started = append(m.started, e.component)
		m.logger.Info("%s started successfully (took %dms)", name, time.Since(begin).Milliseconds())
	}

	m.logger.Info("All components started successfully")
	return nil
}

// rollback stops components started during a failed Start, newest first,
// with a short fixed grace period each.
func (m *Manager) rollback() {
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		m.logger.Debug("Rolling back: stopping %s", component.Name())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := component.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping %s during rollback: %v", component.Name(), err)
		}
		cancel()
	}
	m.started = m.started[:0]
}

// Stop shuts down the running components in reverse startup order. Each gets
// its own deadline derived from the shutdown timeout. Failures are logged,
// never returned: one stuck component must not keep the rest running.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping all components")

	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		name := component.Name()
		m.logger.Info("Stopping %s", name)
		begin := time.Now()

		componentCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(componentCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("Component %s exceeded grace period (%dms timeout), forcing termination",
				name, m.shutdownTimeout.Milliseconds())
		case err != nil:
			m.logger.Error("Error stopping %s: %v", name, err)
		default:
			m.logger.Info("%s stopped successfully (took %dms)", name, time.Since(begin).Milliseconds())
		}
	}
	m.started = m.started[:0]

	m.logger.Info("All components stopped")
	return nil
}
