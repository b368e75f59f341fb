package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentinel/pkg/lock"
	"github.com/cuemby/sentinel/pkg/store"
)

func TestDisabledIntervalNeverFires(t *testing.T) {
	var calls int32
	s := NewScheduler(
		lock.NewManager(store.NewMemStore()),
		store.NewKeys("shm", "t"),
		0, 0,
		func(ctx context.Context) { atomic.AddInt32(&calls, 1) },
		func(ctx context.Context) { atomic.AddInt32(&calls, 1) },
	)

	require.NoError(t, s.Start())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestHealthyTickFiresRepeatedly(t *testing.T) {
	var calls int32
	s := NewScheduler(
		lock.NewManager(store.NewMemStore()),
		store.NewKeys("shm", "t"),
		30*time.Millisecond, 0,
		func(ctx context.Context) { atomic.AddInt32(&calls, 1) },
		nil,
	)

	require.NoError(t, s.Start())
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestStartTwiceRefuses(t *testing.T) {
	s := NewScheduler(
		lock.NewManager(store.NewMemStore()),
		store.NewKeys("shm", "t"),
		time.Second, time.Second,
		func(ctx context.Context) {},
		func(ctx context.Context) {},
	)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)
}

func TestOnlyOneWorkerRunsATickWhenSharingAStore(t *testing.T) {
	shared := store.NewMemStore()
	keys := store.NewKeys("shm", "t")

	var mu sync.Mutex
	var runs int

	newSched := func() *Scheduler {
		return NewScheduler(lock.NewManager(shared), keys, 30*time.Millisecond, 0,
			func(ctx context.Context) {
				mu.Lock()
				runs++
				mu.Unlock()
			}, nil)
	}

	a, b := newSched(), newSched()
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	time.Sleep(150 * time.Millisecond)
	a.Stop()
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	// Both workers tick at the same cadence against the same store; the
	// period lock must keep the run count well below 2x what a single
	// unguarded worker would produce (roughly 5 ticks in 150ms).
	assert.Less(t, runs, 8)
}
