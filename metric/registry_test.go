package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/errors"
)

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "test_counter_total",
		Help:      "test counter",
	})

	require.NoError(t, registry.RegisterCounter("engine", "test_counter", counter))

	err := registry.RegisterCounter("engine", "test_counter", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	counter.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))

	assert.True(t, registry.Unregister("engine", "test_counter"))
	assert.False(t, registry.Unregister("engine", "test_counter"))
}

func TestMetricsRegistry_PrometheusConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: Namespace, Name: "dup", Help: "dup"})
	}

	require.NoError(t, registry.RegisterGauge("a", "dup", gauge()))
	err := registry.RegisterGauge("b", "dup", gauge())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_CoreMetricsRegistered(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.QueriesStarted.WithLabelValues("FIND_ONE").Inc()
	core.ProjectionPackets.WithLabelValues("remote").Add(3)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["semquery_query_started_total"])
	assert.True(t, names["semquery_projection_packets_total"])
	assert.Equal(t, float64(3), counterValue(families, "semquery_projection_packets_total", "remote"))
	assert.Equal(t, float64(0), counterValue(families, "semquery_projection_packets_total", "local"))
}

// counterValue returns the counter sample of family name whose single label
// has value labelValue.
func counterValue(families []*dto.MetricFamily, name, labelValue string) float64 {
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestServer_Address(t *testing.T) {
	s := NewServer(0, "", NewMetricsRegistry())
	assert.Equal(t, "http://localhost:9090/metrics", s.Address())
	assert.NoError(t, s.Stop())
}
