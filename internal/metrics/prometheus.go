package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector backed by a private Prometheus registry.
type Prometheus struct {
	hostStarts      *prometheus.CounterVec
	hostExits       *prometheus.CounterVec
	stopDuration    prometheus.Histogram
	runtimeInstalls *prometheus.CounterVec
	snapshotRefresh *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	dispatchSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheus creates a Prometheus-backed collector under the given
// namespace. Embedders expose it via Registry().
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "hostbridge"
	}

	p := &Prometheus{
		registry: prometheus.NewRegistry(),
	}

	p.hostStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_start_attempts_total",
			Help:      "Extension host start attempts by outcome",
		},
		[]string{"outcome"},
	)

	p.hostExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_exits_total",
			Help:      "Extension host exits by exit code",
		},
		[]string{"code"},
	)

	p.stopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "host_stop_duration_seconds",
			Help:      "Duration of host stop operations, including kill escalation",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	p.runtimeInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_install_attempts_total",
			Help:      "Node runtime provisioning attempts by outcome",
		},
		[]string{"outcome"},
	)

	p.snapshotRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shell_snapshot_refreshes_total",
			Help:      "Shell environment snapshot refreshes by outcome",
		},
		[]string{"outcome"},
	)

	p.dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_dispatches_total",
			Help:      "Dispatched host commands by id and outcome",
		},
		[]string{"id", "outcome"},
	)

	p.dispatchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_dispatch_duration_seconds",
			Help:      "Duration of command handler execution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"id"},
	)

	p.registry.MustRegister(
		p.hostStarts,
		p.hostExits,
		p.stopDuration,
		p.runtimeInstalls,
		p.snapshotRefresh,
		p.dispatches,
		p.dispatchSeconds,
	)

	return p
}

// HostStart records a start attempt outcome.
func (p *Prometheus) HostStart(outcome string) {
	p.hostStarts.WithLabelValues(outcome).Inc()
}

// HostExit records a host exit code.
func (p *Prometheus) HostExit(code int) {
	p.hostExits.WithLabelValues(strconv.Itoa(code)).Inc()
}

// HostStopDuration records a stop duration.
func (p *Prometheus) HostStopDuration(d time.Duration) {
	p.stopDuration.Observe(d.Seconds())
}

// RuntimeInstall records a provisioning attempt outcome.
func (p *Prometheus) RuntimeInstall(outcome string) {
	p.runtimeInstalls.WithLabelValues(outcome).Inc()
}

// SnapshotRefresh records a snapshot refresh outcome.
func (p *Prometheus) SnapshotRefresh(outcome string) {
	p.snapshotRefresh.WithLabelValues(outcome).Inc()
}

// CommandDispatch records one dispatched command.
func (p *Prometheus) CommandDispatch(id, outcome string, d time.Duration) {
	p.dispatches.WithLabelValues(id, outcome).Inc()
	p.dispatchSeconds.WithLabelValues(id).Observe(d.Seconds())
}

// Registry returns the private registry for HTTP handler setup.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Compile-time interface compliance check
var _ Collector = (*Prometheus)(nil)
