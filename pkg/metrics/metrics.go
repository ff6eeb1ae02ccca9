// Package metrics provides the centralized Prometheus metrics registry
// for the feasibility platform client. Metrics are defined in their
// respective packages (client, importjob, recompute, statuscache) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - feas_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - feas_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - feas_errors_total{kind} (Counter): Errors by kind (cancelled, network_unreachable, http_status, malformed)
//
// Import Poll Metrics (pkg/importjob):
//   - feas_import_poll_attempts_total{result} (Counter): Poll attempts by result (ok, error, deadline)
//   - feas_import_poll_sessions_total{outcome} (Counter): Sessions by outcome (completed, failed, timed_out, cancelled)
//   - feas_import_poll_session_seconds (Histogram): Session duration
//
// Recompute Metrics (pkg/recompute):
//   - feas_recompute_triggers_total (Counter): Trigger signals received
//   - feas_recompute_runs_total{result} (Counter): Runs by result (applied, stale, cancelled, error)
//
// Status Cache Metrics (pkg/statuscache):
//   - feas_status_cache_hits_total (Counter): Cache hits
//   - feas_status_cache_misses_total (Counter): Cache misses
//   - feas_status_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(feas_errors_total[5m])
//
//   # Share of recompute runs discarded as stale
//   rate(feas_recompute_runs_total{result="stale"}[5m]) /
//   rate(feas_recompute_runs_total[5m])
//
//   # Poll sessions timing out
//   rate(feas_import_poll_sessions_total{outcome="timed_out"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(feas_request_duration_seconds_bucket[5m]))
