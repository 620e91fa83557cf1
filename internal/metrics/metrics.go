// Package metrics holds the process-wide Prometheus instruments.
// They register on the default registry; the HTTP server exposes them
// under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandDuration measures wall time of control-plane invocations.
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unitdeck_command_duration_seconds",
		Help:    "Wall time of control-plane command invocations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"prog"})

	// CommandFailures counts invocations that never produced an exit
	// status (spawn failures and timeouts).
	CommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unitdeck_command_failures_total",
		Help: "Control-plane invocations that failed before producing an exit status.",
	}, []string{"prog", "reason"})

	// UnitActions counts control actions (start/stop/restart/...) by outcome.
	UnitActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unitdeck_unit_actions_total",
		Help: "Unit control actions, by action and outcome.",
	}, []string{"action", "outcome"})

	// MonitorTransitions counts active-state changes seen by the monitor.
	MonitorTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unitdeck_monitor_transitions_total",
		Help: "Active-state transitions observed on watched units.",
	})

	// HTTPRequests counts served requests by route pattern and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unitdeck_http_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})
)
