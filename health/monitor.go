package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Check reports the current health of one component.
type Check func(ctx context.Context) Status

// DefaultCheckTimeout bounds one round of checks run by ServeHTTP.
const DefaultCheckTimeout = 2 * time.Second

// Monitor runs registered checks and aggregates their results.
type Monitor struct {
	system string

	mu     sync.RWMutex
	order  []string
	checks map[string]Check
}

// NewMonitor creates a monitor reporting as system.
func NewMonitor(system string) *Monitor {
	return &Monitor{system: system, checks: make(map[string]Check)}
}

// Register adds or replaces the check for name.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[name]; !ok {
		m.order = append(m.order, name)
	}
	m.checks[name] = check
}

// Remove drops the check for name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[name]; !ok {
		return
	}
	delete(m.checks, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Names returns the registered check names in registration order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Check runs every check in registration order. Each result is labelled
// with the name it was registered under.
func (m *Monitor) Check(ctx context.Context) Status {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	checks := make([]Check, len(names))
	for i, n := range names {
		checks[i] = m.checks[n]
	}
	m.mu.RUnlock()

	subs := make([]Status, 0, len(checks))
	for i, check := range checks {
		st := check(ctx)
		st.Component = names[i]
		if st.Timestamp.IsZero() {
			st.Timestamp = time.Now()
		}
		subs = append(subs, st)
	}
	return Aggregate(m.system, subs)
}

// ServeHTTP writes the aggregate status as JSON. Unhealthy systems answer
// 503.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
	defer cancel()

	status := m.Check(ctx)
	w.Header().Set("Content-Type", "application/json")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
