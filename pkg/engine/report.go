package engine

import (
	"context"

	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/statemachine"
	"github.com/cuemby/sentinel/pkg/target"
)

// Profile selects which check-profile's thresholds an observation is
// measured against. Passive reports (fed in from real traffic) and active
// probes (run by this engine's own scheduler) keep independent threshold
// configuration; both update the same per-target counter word.
type Profile int

const (
	ProfilePassive Profile = iota
	ProfileActive
)

// ReportFailure is the generic failure entry point (C5): HTTP if the
// profile's type is http/https, otherwise TCP.
func (e *Engine) ReportFailure(ctx context.Context, ip string, port int, hostname string) error {
	return e.reportFailure(ctx, ProfilePassive, ip, port, hostname)
}

// ReportSuccess is the generic success entry point (C5).
func (e *Engine) ReportSuccess(ctx context.Context, ip string, port int, hostname string) error {
	return e.reportSuccess(ctx, ProfilePassive, ip, port, hostname)
}

// ReportTCPFailure reports a connect-level failure.
func (e *Engine) ReportTCPFailure(ctx context.Context, ip string, port int, hostname string) error {
	return e.reportTCPFailure(ctx, ProfilePassive, ip, port, hostname)
}

// ReportTimeout reports a timed-out observation.
func (e *Engine) ReportTimeout(ctx context.Context, ip string, port int, hostname string) error {
	return e.reportTimeout(ctx, ProfilePassive, ip, port, hostname)
}

// ReportHTTPStatus reports an observed HTTP status code, routing it to
// success, HTTP failure, or neither per the profile's status sets. code==0
// means "status unavailable" and is treated as an HTTP failure.
func (e *Engine) ReportHTTPStatus(ctx context.Context, ip string, port int, hostname string, code int) error {
	return e.reportHTTPStatus(ctx, ProfilePassive, ip, port, hostname, code)
}

func (e *Engine) thresholds(p Profile) (typ string, healthy, unhealthy ThresholdConfig) {
	if p == ProfileActive {
		a := e.cfg.Checks.Active
		return a.Type, a.Healthy, a.Unhealthy
	}
	pc := e.cfg.Checks.Passive
	return pc.Type, pc.Healthy, pc.Unhealthy
}

func (e *Engine) reportFailure(ctx context.Context, p Profile, ip string, port int, hostname string) error {
	typ, _, unhealthy := e.thresholds(p)
	if typ == "http" || typ == "https" {
		return e.observe(ctx, p, ip, port, hostname, target.Unhealthy, unhealthy.HTTPFailures, statemachine.HTTP, "http")
	}
	return e.observe(ctx, p, ip, port, hostname, target.Unhealthy, unhealthy.TCPFailures, statemachine.TCP, "tcp")
}

func (e *Engine) reportSuccess(ctx context.Context, p Profile, ip string, port int, hostname string) error {
	_, healthy, _ := e.thresholds(p)
	return e.observe(ctx, p, ip, port, hostname, target.Healthy, healthy.Successes, statemachine.Success, "success")
}

func (e *Engine) reportTCPFailure(ctx context.Context, p Profile, ip string, port int, hostname string) error {
	_, _, unhealthy := e.thresholds(p)
	return e.observe(ctx, p, ip, port, hostname, target.Unhealthy, unhealthy.TCPFailures, statemachine.TCP, "tcp")
}

func (e *Engine) reportTimeout(ctx context.Context, p Profile, ip string, port int, hostname string) error {
	_, _, unhealthy := e.thresholds(p)
	return e.observe(ctx, p, ip, port, hostname, target.Unhealthy, unhealthy.Timeouts, statemachine.Timeout, "timeout")
}

func (e *Engine) reportHTTPStatus(ctx context.Context, p Profile, ip string, port int, hostname string, code int) error {
	_, healthy, unhealthy := e.thresholds(p)
	switch {
	case healthy.HTTPStatuses.Contains(code):
		return e.observe(ctx, p, ip, port, hostname, target.Healthy, healthy.Successes, statemachine.Success, "success")
	case unhealthy.HTTPStatuses.Contains(code) || code == 0:
		return e.observe(ctx, p, ip, port, hostname, target.Unhealthy, unhealthy.HTTPFailures, statemachine.HTTP, "http")
	default:
		return nil
	}
}

func (e *Engine) observe(ctx context.Context, p Profile, ip string, port int, hostname string, kind target.Health, threshold int, sel statemachine.Selector, counterLabel string) error {
	source := "passive"
	if p == ProfileActive {
		source = "active"
	}
	metrics.ReportsTotal.WithLabelValues(source, counterLabel).Inc()
	return e.mach.Observe(ctx, ip, port, hostname, kind, uint8(threshold), sel)
}
