package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	h := NewHealthy("schema", "loaded")
	assert.True(t, h.Healthy)
	assert.True(t, h.IsHealthy())
	assert.False(t, h.Timestamp.IsZero())

	d := NewDegraded("projection", "no remote members")
	assert.False(t, d.Healthy)
	assert.True(t, d.IsDegraded())

	u := NewUnhealthy("nats", "disconnected")
	assert.False(t, u.Healthy)
	assert.True(t, u.IsUnhealthy())
}

func TestFromError(t *testing.T) {
	st := FromError("nats", nil, "connected")
	assert.True(t, st.IsHealthy())
	assert.Equal(t, "connected", st.Message)

	st = FromError("nats", errors.New("cannot connect to nats://10.0.0.5:4222"), "connected")
	assert.True(t, st.IsUnhealthy())
	assert.Equal(t, "cannot connect to [URL]", st.Message)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		subs  []Status
		state string
	}{
		{"empty", nil, StateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StateHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StateUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Aggregate("semquery", tt.subs)
			assert.Equal(t, tt.state, st.Status)
			assert.Equal(t, "semquery", st.Component)
			assert.Len(t, st.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_DoesNotShareInput(t *testing.T) {
	subs := []Status{NewHealthy("a", "")}
	st := Aggregate("semquery", subs)
	subs[0].Message = "changed"
	assert.Empty(t, st.SubStatuses[0].Message)
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	base := NewHealthy("system", "").WithSubStatus(NewHealthy("a", ""))
	base.SubStatuses = base.SubStatuses[:1:2]

	left := base.WithSubStatus(NewHealthy("left", ""))
	right := base.WithSubStatus(NewHealthy("right", ""))

	require.Len(t, left.SubStatuses, 2)
	require.Len(t, right.SubStatuses, 2)
	assert.Equal(t, "left", left.SubStatuses[1].Component)
	assert.Equal(t, "right", right.SubStatuses[1].Component)
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "Unix file path", input: "failed to open /etc/semquery/customer.graphql", expected: "failed to open [PATH]"},
		{name: "Windows file path", input: "cannot read C:\\Users\\Admin\\schema.graphql", expected: "cannot read [PATH]"},
		{name: "HTTP URL", input: "connection failed to https://api.example.com/v1/health", expected: "connection failed to [URL]"},
		{name: "NATS URL", input: "cannot connect to nats://localhost:4222", expected: "cannot connect to [URL]"},
		{name: "IP address", input: "timeout connecting to 192.168.1.100", expected: "timeout connecting to [IP]"},
		{name: "Port number", input: "failed to bind to :8080", expected: "failed to bind to [PORT]"},
		{name: "Credentials in error", input: "auth failed with password:secretpass123", expected: "auth failed with [REDACTED]"},
		{
			name:     "Complex error with multiple sensitive items",
			input:    "failed to connect to https://192.168.1.1:8080/api with token=abc123def",
			expected: "failed to connect to [URL] with [REDACTED]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeErrorMessage(tt.input))
		})
	}
}

func TestMonitor_CheckLabelsAndOrders(t *testing.T) {
	m := NewMonitor("semquery")
	m.Register("schema", func(context.Context) Status { return NewHealthy("", "version v1") })
	m.Register("nats", func(context.Context) Status { return NewDegraded("whatever", "reconnecting") })

	st := m.Check(context.Background())
	assert.Equal(t, StateDegraded, st.Status)
	require.Len(t, st.SubStatuses, 2)
	assert.Equal(t, "schema", st.SubStatuses[0].Component)
	assert.Equal(t, "nats", st.SubStatuses[1].Component)
}

func TestMonitor_RegisterReplacesAndRemove(t *testing.T) {
	m := NewMonitor("semquery")
	m.Register("nats", func(context.Context) Status { return NewUnhealthy("", "down") })
	m.Register("schema", func(context.Context) Status { return NewHealthy("", "") })
	m.Register("nats", func(context.Context) Status { return NewHealthy("", "up") })

	assert.Equal(t, []string{"nats", "schema"}, m.Names())
	assert.True(t, m.Check(context.Background()).IsHealthy())

	m.Remove("nats")
	m.Remove("absent")
	assert.Equal(t, []string{"schema"}, m.Names())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := NewMonitor("semquery")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Register("check", func(context.Context) Status { return NewHealthy("", "") })
		}()
		go func() {
			defer wg.Done()
			_ = m.Check(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"check"}, m.Names())
}

func TestMonitor_ServeHTTP(t *testing.T) {
	m := NewMonitor("semquery")
	m.Register("schema", func(context.Context) Status { return NewHealthy("", "") })

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Healthy)
	assert.Equal(t, "semquery", body.Component)

	m.Register("nats", func(context.Context) Status { return NewUnhealthy("", "disconnected") })
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
