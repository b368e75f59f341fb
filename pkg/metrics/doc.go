// Package metrics exposes the Prometheus metrics for the health-checking
// engine: target counts by internal health state, verdict transitions,
// passive/active report counts, probe outcomes and durations, and scheduler
// tick and lock-contention counters. All metrics are registered at package
// init and served by promhttp.Handler() from the demo CLI's /metrics
// endpoint.
package metrics
