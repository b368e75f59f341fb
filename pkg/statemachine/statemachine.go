// Package statemachine implements the counter-threshold state machine (C4):
// it turns a stream of success/failure observations into transitions of a
// target's four-state hysteretic internal health, persisting the packed
// counter word and state integer in the shared store and posting verdict
// events for every transition.
package statemachine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/lock"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/store"
	"github.com/cuemby/sentinel/pkg/target"
)

// Selector names which byte of the packed counter word an observation
// increments.
type Selector uint

const (
	Success Selector = store.ShiftSuccess
	HTTP    Selector = store.ShiftHTTP
	TCP     Selector = store.ShiftTCP
	Timeout Selector = store.ShiftTimeout
)

const (
	lockTimeout = 5 * time.Second
	lockExptime = 10 * time.Second
)

// Machine applies observations for one engine instance. It reads "current"
// internal health from the per-worker index rather than re-reading the
// shared state key, mirroring the fast-path shortcuts which are index-only
// lookups; the slow path's shared-store mutation is still serialized by the
// per-target lock so the masking read-modify-write is safe across workers.
type Machine struct {
	store  store.Store
	keys   store.Keys
	locks  *lock.Manager
	bus    *events.Bus
	index  *target.Index
	source string
}

// NewMachine builds a Machine for one engine instance. source identifies
// this worker when posting events.
func NewMachine(s store.Store, keys store.Keys, locks *lock.Manager, bus *events.Bus, idx *target.Index, source string) *Machine {
	return &Machine{store: s, keys: keys, locks: locks, bus: bus, index: idx, source: source}
}

// Observe applies one report_kind observation (Healthy or Unhealthy) for a
// target against the given threshold and counter selector. threshold==0
// disables the category; a target unknown to the local index is treated as
// transient sync lag rather than an error.
func (m *Machine) Observe(ctx context.Context, ip string, port int, hostname string, reportKind target.Health, threshold uint8, selector Selector) error {
	if reportKind != target.Healthy && reportKind != target.Unhealthy {
		return errors.New("statemachine: report kind must be Healthy or Unhealthy")
	}
	if threshold == 0 {
		return nil
	}

	t, ok := m.index.Get(ip, port, hostname)
	if !ok {
		log.WithComponent("statemachine").Warn().Str("ip", ip).Int("port", port).Str("hostname", hostname).
			Msg("observation for unindexed target, treating as sync lag")
		return nil
	}
	current := t.InternalHealth

	// Cannot cross a threshold that is already saturated in the same direction.
	if (current == target.Healthy && reportKind == target.Healthy) ||
		(current == target.Unhealthy && reportKind == target.Unhealthy) {
		return nil
	}

	counterKey := m.keys.Counter(ip, port, hostname)
	stateKey := m.keys.State(ip, port, hostname)
	lockKey := m.keys.TargetLock(ip, port, hostname)

	return m.locks.WithLock(ctx, lockKey, lockTimeout, lockExptime, func() error {
		delta := int64(1) << uint(selector)
		word, err := m.store.Incr(counterKey, delta)
		if err != nil {
			return err
		}
		ctr := store.ExtractCounter(word, uint(selector))

		var newWord int64
		if reportKind == target.Healthy {
			newWord = store.MaskForSuccess(word)
		} else {
			newWord = store.MaskForFailure(word)
		}
		if newWord != word {
			if err := m.store.Set(counterKey, store.EncodeInt64(newWord)); err != nil {
				return err
			}
		}

		newHealth := current
		switch {
		case ctr >= threshold:
			newHealth = reportKind
		case current == target.Healthy && hasAnyFailure(newWord):
			newHealth = target.MostlyHealthy
		case current == target.Unhealthy && hasSuccess(newWord):
			newHealth = target.MostlyUnhealthy
		}

		if newHealth == current {
			return nil
		}
		if err := m.store.Set(stateKey, store.EncodeInt64(int64(newHealth))); err != nil {
			return err
		}
		m.postVerdict(ip, port, hostname, newHealth)
		return nil
	})
}

// SetStatus forces a target's health without going through the threshold
// state machine: the counter word is zeroed, the new full state is written,
// and a verdict event is posted.
func (m *Machine) SetStatus(ctx context.Context, ip string, port int, hostname string, healthy bool) error {
	newHealth := target.Unhealthy
	if healthy {
		newHealth = target.Healthy
	}

	counterKey := m.keys.Counter(ip, port, hostname)
	stateKey := m.keys.State(ip, port, hostname)
	lockKey := m.keys.TargetLock(ip, port, hostname)

	return m.locks.WithLock(ctx, lockKey, lockTimeout, lockExptime, func() error {
		if err := m.store.Set(counterKey, store.EncodeInt64(0)); err != nil {
			return err
		}
		if err := m.store.Set(stateKey, store.EncodeInt64(int64(newHealth))); err != nil {
			return err
		}
		m.postVerdict(ip, port, hostname, newHealth)
		return nil
	})
}

// SetAllByHostname applies SetStatus to every target in the local index
// matching hostname and port, aggregating any per-target errors into one.
func (m *Machine) SetAllByHostname(ctx context.Context, hostname string, port int, healthy bool) error {
	var matches []*target.Target
	m.index.Each(func(t *target.Target) {
		if t.Hostname == hostname && t.Port == port {
			matches = append(matches, t)
		}
	})

	var failures []string
	for _, t := range matches {
		if err := m.SetStatus(ctx, t.IP, t.Port, t.Hostname, healthy); err != nil {
			failures = append(failures, t.Key()+": "+err.Error())
		}
	}
	if len(failures) > 0 {
		return errors.New("statemachine: set_all_by_hostname failures: " + strings.Join(failures, "; "))
	}
	return nil
}

func (m *Machine) postVerdict(ip string, port int, hostname string, h target.Health) {
	var typ events.Type
	switch h {
	case target.Healthy:
		typ = events.Healthy
	case target.Unhealthy:
		typ = events.Unhealthy
	case target.MostlyHealthy:
		typ = events.MostlyHealthy
	case target.MostlyUnhealthy:
		typ = events.MostlyUnhealthy
	}
	m.bus.Post(m.source, typ, ip, port, hostname)
}

func hasAnyFailure(word int64) bool {
	return store.ExtractCounter(word, store.ShiftHTTP) != 0 ||
		store.ExtractCounter(word, store.ShiftTCP) != 0 ||
		store.ExtractCounter(word, store.ShiftTimeout) != 0
}

func hasSuccess(word int64) bool {
	return store.ExtractCounter(word, store.ShiftSuccess) != 0
}
