// Package metric provides the Prometheus metrics registry for semquery.
//
// MetricsRegistry wraps a private prometheus.Registry, registers the engine
// core metrics (queries, search iterations, invocation failures, projection
// throughput) and lets components register their own collectors under a
// "component.metric" key so duplicate registrations are reported as invalid
// errors instead of panics. Server exposes the registry on /metrics.
package metric
