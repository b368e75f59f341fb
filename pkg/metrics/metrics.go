package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TargetsTotal is the number of registered targets.
	TargetsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_targets_total",
			Help: "Total number of registered targets",
		},
	)

	TargetsByHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_targets_by_health",
			Help: "Number of targets by internal health state",
		},
		[]string{"health"},
	)

	VerdictTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_verdict_transitions_total",
			Help: "Total number of internal health transitions, by new state",
		},
		[]string{"health"},
	)

	BooleanFlipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_boolean_flips_total",
			Help: "Total number of healthy/unhealthy boolean verdict flips",
		},
	)

	// Passive/active report metrics
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_reports_total",
			Help: "Total number of health observations processed, by source and counter",
		},
		[]string{"source", "counter"},
	)

	SyncLagTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_sync_lag_total",
			Help: "Total number of observations dropped because the target was not yet in the local index",
		},
	)

	// Active prober metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_probes_total",
			Help: "Total number of active probes, by outcome",
		},
		[]string{"outcome"},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_probe_duration_seconds",
			Help:    "Time taken by a single active probe in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduler / locking metrics
	SchedulerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_scheduler_ticks_total",
			Help: "Total number of scheduler ticks, by tick kind and outcome",
		},
		[]string{"tick", "outcome"},
	)

	LockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_lock_contention_total",
			Help: "Total number of lock acquisition attempts that timed out, by lock kind",
		},
		[]string{"lock"},
	)
)

func init() {
	prometheus.MustRegister(TargetsTotal)
	prometheus.MustRegister(TargetsByHealth)
	prometheus.MustRegister(VerdictTransitionsTotal)
	prometheus.MustRegister(BooleanFlipsTotal)
	prometheus.MustRegister(ReportsTotal)
	prometheus.MustRegister(SyncLagTotal)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(SchedulerTicksTotal)
	prometheus.MustRegister(LockContentionTotal)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and observing it against
// a histogram once it completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
