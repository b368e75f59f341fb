package engine

import (
	"context"

	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/prober"
	"github.com/cuemby/sentinel/pkg/target"
)

// probeHealthyTick runs the healthy-interval active probe: every target
// whose current verdict is healthy or mostly_healthy, looking for the
// first signs of failure.
func (e *Engine) probeHealthyTick(ctx context.Context) {
	e.runActiveTick(ctx, func(t *target.Target) bool { return t.InternalHealth.Verdict() })
}

// probeUnhealthyTick runs the unhealthy-interval active probe: every
// target whose current verdict is unhealthy or mostly_unhealthy, looking
// for recovery.
func (e *Engine) probeUnhealthyTick(ctx context.Context) {
	e.runActiveTick(ctx, func(t *target.Target) bool { return !t.InternalHealth.Verdict() })
}

func (e *Engine) runActiveTick(ctx context.Context, include func(*target.Target) bool) {
	var targets []*target.Target
	e.index.Each(func(t *target.Target) {
		if include(t) {
			targets = append(targets, t)
		}
	})
	if len(targets) == 0 {
		return
	}

	cfg := e.cfg.Checks.Active
	prober.ScanConcurrent(ctx, targets, cfg.Concurrency, func(ctx context.Context, t *target.Target) {
		e.probeOne(ctx, t)
	})
}

func (e *Engine) probeOne(ctx context.Context, t *target.Target) {
	cfg := e.cfg.Checks.Active
	pc := prober.Config{
		Type:                   cfg.Type,
		Timeout:                secondsToDuration(cfg.TimeoutSeconds),
		HTTPPath:               cfg.HTTPPath,
		HTTPSSNI:               cfg.HTTPSSNI,
		HTTPSVerifyCertificate: cfg.HTTPSVerifyCertificate,
		ClientCert:             e.clientCert,
		ReqHeaders:             cfg.ReqHeaders,
	}

	timer := metrics.NewTimer()
	report := prober.Probe(ctx, pc, t.IP, t.Port, t.Hostname, t.HostHeader)
	timer.ObserveDuration(metrics.ProbeDuration)
	metrics.ProbesTotal.WithLabelValues(report.Kind.String()).Inc()

	var err error
	switch report.Kind {
	case prober.Success:
		err = e.reportSuccess(ctx, ProfileActive, t.IP, t.Port, t.Hostname)
	case prober.Timeout:
		err = e.reportTimeout(ctx, ProfileActive, t.IP, t.Port, t.Hostname)
	case prober.TCPFailure:
		err = e.reportTCPFailure(ctx, ProfileActive, t.IP, t.Port, t.Hostname)
	case prober.HTTPStatus:
		err = e.reportHTTPStatus(ctx, ProfileActive, t.IP, t.Port, t.Hostname, report.StatusCode)
	}
	if err != nil {
		e.log.Warn().Err(err).Str("ip", t.IP).Int("port", t.Port).Str("hostname", t.Hostname).
			Msg("active probe report failed")
	}
}
