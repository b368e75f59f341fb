package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/sentinel/pkg/lock"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/store"
)

// ErrAlreadyRunning is returned by Start when the scheduler's tickers are
// already running.
var ErrAlreadyRunning = errors.New("scheduler: already running")

const maxSubInterval = 500 * time.Millisecond

// TickFunc runs one active-check sweep (all healthy/mostly_healthy targets,
// or all unhealthy/mostly_unhealthy targets, depending on which tick fired).
type TickFunc func(ctx context.Context)

// Scheduler drives the two periodic active-check ticks. An interval of 0
// disables the corresponding tick entirely.
type Scheduler struct {
	locks *lock.Manager
	keys  store.Keys
	log   zerolog.Logger

	healthyInterval   time.Duration
	unhealthyInterval time.Duration
	runHealthy        TickFunc
	runUnhealthy      TickFunc

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler builds a Scheduler. runHealthy/runUnhealthy are called at
// most once per tick, and only on the worker that wins the period lock.
func NewScheduler(locks *lock.Manager, keys store.Keys, healthyInterval, unhealthyInterval time.Duration, runHealthy, runUnhealthy TickFunc) *Scheduler {
	return &Scheduler{
		locks:             locks,
		keys:              keys,
		log:               log.WithComponent("scheduler"),
		healthyInterval:   healthyInterval,
		unhealthyInterval: unhealthyInterval,
		runHealthy:        runHealthy,
		runUnhealthy:      runUnhealthy,
	}
}

// Start launches both tickers. It refuses if they are already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runLoop("healthy", s.healthyInterval, s.runHealthy)
	}()
	go func() {
		defer s.wg.Done()
		s.runLoop("unhealthy", s.unhealthyInterval, s.runUnhealthy)
	}()
	return nil
}

// Stop cancels both tickers and waits for their loops to exit. Probes
// already in flight are not interrupted; they run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// runLoop ticks at min(interval, 500ms) granularity so Stop is responsive,
// but only actually fires a sweep once a full interval has elapsed.
func (s *Scheduler) runLoop(kind string, interval time.Duration, fn TickFunc) {
	if interval <= 0 {
		return
	}
	sub := interval
	if sub > maxSubInterval {
		sub = maxSubInterval
	}

	ticker := time.NewTicker(sub)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			elapsed += sub
			if elapsed < interval {
				continue
			}
			elapsed = 0
			s.fire(kind, interval, fn)
		}
	}
}

func (s *Scheduler) fire(kind string, interval time.Duration, fn TickFunc) {
	key := s.keys.PeriodLock(kind)
	// The period lock is held for just under one interval and is not released
	// after the run, so a peer whose ticker fires moments later finds it still
	// held and skips this tick.
	acquired, err := s.locks.TryPeriod(key, interval-interval/10)
	if err != nil {
		s.log.Error().Err(err).Str("tick", kind).Msg("period lock acquire failed")
		metrics.SchedulerTicksTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	if !acquired {
		metrics.SchedulerTicksTotal.WithLabelValues(kind, "skipped").Inc()
		return
	}

	fn(context.Background())
	metrics.SchedulerTicksTotal.WithLabelValues(kind, "ran").Inc()
}
