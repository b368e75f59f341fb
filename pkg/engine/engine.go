// Package engine wires together the shared store, locking, target
// registry, counter-threshold state machine, active prober, scheduler, and
// event bus into the health-checking engine's public surface.
package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/lock"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/scheduler"
	"github.com/cuemby/sentinel/pkg/statemachine"
	"github.com/cuemby/sentinel/pkg/store"
	"github.com/cuemby/sentinel/pkg/target"
)

// Engine is one instance of the health-checking core: the shared-store
// registry and state machine for a single (shm_name, name) namespace, plus
// whatever of that namespace this worker has locally indexed.
type Engine struct {
	cfg   Config
	store store.Store
	keys  store.Keys
	locks *lock.Manager
	bus   *events.Bus
	index *target.Index
	mach  *statemachine.Machine
	sched *scheduler.Scheduler
	log   zerolog.Logger

	clientCert *tls.Certificate

	sub          events.Subscriber
	unsubscribe  func()
	subscribeCtx context.Context
	subscribeFn  context.CancelFunc

	boot *lock.BootQueue
}

// New builds an Engine over s, validating cfg and starting its event bus
// subscriber. The scheduler's tickers are not started until Start is called.
func New(cfg Config, s store.Store) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		store: s,
		keys:  store.NewKeys(cfg.ShmName, cfg.Name),
		locks: lock.NewManager(s),
		bus:   events.NewBus(),
		index: target.NewIndex(),
		log:   log.WithComponent("engine").With().Str("name", cfg.Name).Logger(),
		boot:  lock.NewBootQueue(),
	}

	if cfg.SSLCert != "" && cfg.SSLKey != "" {
		cert, err := tls.X509KeyPair([]byte(cfg.SSLCert), []byte(cfg.SSLKey))
		if err != nil {
			return nil, fmt.Errorf("%w: ssl_cert/ssl_key: %v", ErrConfigInvalid, err)
		}
		e.clientCert = &cert
	}

	e.mach = statemachine.NewMachine(s, e.keys, e.locks, e.bus, e.index, cfg.Name)
	e.sched = scheduler.NewScheduler(
		e.locks, e.keys,
		time.Duration(cfg.Checks.Active.Healthy.IntervalSeconds)*time.Second,
		time.Duration(cfg.Checks.Active.Unhealthy.IntervalSeconds)*time.Second,
		e.probeHealthyTick,
		e.probeUnhealthyTick,
	)

	e.bus.Start()
	e.sub, e.unsubscribe = e.bus.RegisterWeak(cfg.Name)
	e.subscribeCtx, e.subscribeFn = context.WithCancel(context.Background())
	go e.subscribeLoop()

	return e, nil
}

// Start launches the active-check scheduler. Passive reports and the event
// subscriber are live from construction onward.
func (e *Engine) Start() error {
	e.boot.MarkReady()
	return e.sched.Start()
}

// Stop halts the scheduler and the event subscriber. In-flight probes run
// to completion.
func (e *Engine) Stop() {
	e.sched.Stop()
	e.subscribeFn()
	e.unsubscribe()
	e.bus.Stop()
}

func (e *Engine) subscribeLoop() {
	for {
		select {
		case ev, ok := <-e.sub:
			if !ok {
				return
			}
			e.applyEvent(ev)
		case <-e.subscribeCtx.Done():
			return
		}
	}
}

func (e *Engine) applyEvent(ev events.Event) {
	switch ev.Type {
	case events.Remove:
		if !e.index.Remove(ev.IP, ev.Port, ev.Hostname) {
			e.log.Warn().Str("ip", ev.IP).Int("port", ev.Port).Str("hostname", ev.Hostname).
				Msg("remove event for unindexed target")
		}
	case events.Clear:
		e.index.Clear()
	default:
		h, ok := healthForEvent(ev.Type)
		if !ok {
			return
		}
		if flipped := e.index.SetHealth(ev.IP, ev.Port, ev.Hostname, h); flipped {
			metrics.BooleanFlipsTotal.Inc()
		}
		metrics.VerdictTransitionsTotal.WithLabelValues(h.String()).Inc()
	}
}

func healthForEvent(typ events.Type) (target.Health, bool) {
	switch typ {
	case events.Healthy:
		return target.Healthy, true
	case events.Unhealthy:
		return target.Unhealthy, true
	case events.MostlyHealthy:
		return target.MostlyHealthy, true
	case events.MostlyUnhealthy:
		return target.MostlyUnhealthy, true
	default:
		return 0, false
	}
}
