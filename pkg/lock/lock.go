// Package lock implements two named-lock patterns on top of store.Store: a
// blocking acquire for callers that can suspend, and a "try sync, fall back
// to a deferred retry task" pattern for callers that must never block. The
// engine's target-list mutations and the state machine's per-target
// counter/state read-modify-write both use the blocking WithLock.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/store"
)

// ErrLockTimeout is returned by WithLock when the lock could not be
// acquired within the given timeout.
var ErrLockTimeout = errors.New("lock: acquisition timed out")

const pollInterval = 20 * time.Millisecond

// Outcome tells an async caller whether its mutation already ran or was
// handed off to a deferred retry.
type Outcome int

const (
	// Acquired means fn already ran synchronously before returning.
	Acquired Outcome = iota
	// Deferred means the lock was contended; fn will run later on a
	// background retry goroutine. The caller's mutation is eventually
	// consistent, not lost.
	Deferred
)

// Manager acquires and releases named locks backed by a store.Store.
type Manager struct {
	store store.Store
}

// NewManager creates a lock Manager over s.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// WithLock blocks, polling TryAcquire until it succeeds, ctx is done, or
// timeout elapses, then runs fn and releases the lock. Use this from
// callers that are allowed to suspend (e.g. registry add/remove).
func (m *Manager) WithLock(ctx context.Context, key string, timeout, exptime time.Duration, fn func() error) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		acquired, err := m.store.TryAcquire(key, exptime)
		if err != nil {
			return err
		}
		if acquired {
			defer m.release(key)
			return fn()
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WithLockAsync tries to acquire the lock once. On success it runs fn
// inline and returns Acquired. On contention it hands fn off to a
// background goroutine that keeps retrying (bounded to 10x timeout) and
// returns Deferred immediately without blocking the caller — the "success
// or async" contract callers on a non-suspending path rely on.
func (m *Manager) WithLockAsync(key string, timeout, exptime time.Duration, fn func() error) (Outcome, error) {
	acquired, err := m.store.TryAcquire(key, exptime)
	if err != nil {
		return Acquired, err
	}
	if acquired {
		defer m.release(key)
		return Acquired, fn()
	}

	go m.retryDeferred(key, timeout, exptime, fn)
	return Deferred, nil
}

func (m *Manager) retryDeferred(key string, timeout, exptime time.Duration, fn func() error) {
	deadline := time.Now().Add(10 * timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		acquired, err := m.store.TryAcquire(key, exptime)
		if err != nil {
			log.WithComponent("lock").Error().Err(err).Str("key", key).Msg("deferred lock retry: store error")
			return
		}
		if acquired {
			defer m.release(key)
			if err := fn(); err != nil {
				log.WithComponent("lock").Error().Err(err).Str("key", key).Msg("deferred lock retry: callback failed")
			}
			return
		}
		if time.Now().After(deadline) {
			log.WithComponent("lock").Warn().Str("key", key).Msg("deferred lock retry: gave up, a future event will catch up")
			return
		}
	}
}

func (m *Manager) release(key string) {
	if err := m.store.Release(key); err != nil {
		log.WithComponent("lock").Warn().Err(err).Str("key", key).Msg("release failed, will auto-expire")
	}
}

// TryPeriod attempts a single, non-blocking acquisition of a period lock
// (the scheduler's per-tick cross-worker single-runner guard): if
// contended, the caller's tick is simply a no-op.
func (m *Manager) TryPeriod(key string, exptime time.Duration) (bool, error) {
	return m.store.TryAcquire(key, exptime)
}

// ReleasePeriod releases a period lock before its exptime has run out.
func (m *Manager) ReleasePeriod(key string) error {
	return m.store.Release(key)
}
