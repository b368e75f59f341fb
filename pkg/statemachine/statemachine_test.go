package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/lock"
	"github.com/cuemby/sentinel/pkg/store"
	"github.com/cuemby/sentinel/pkg/target"
)

type harness struct {
	machine *Machine
	index   *target.Index
	bus     *events.Bus
	sub     events.Subscriber
}

func newHarness(t *testing.T, ip string, port int, initial target.Health) *harness {
	t.Helper()
	s := store.NewMemStore()
	keys := store.NewKeys("shm", "test")
	locks := lock.NewManager(s)
	bus := events.NewBus()
	bus.Start()
	t.Cleanup(bus.Stop)

	idx := target.NewIndex()
	idx.Add(&target.Target{IP: ip, Port: port, InternalHealth: initial})

	sub, unsubscribe := bus.RegisterWeak("test")
	t.Cleanup(unsubscribe)

	m := NewMachine(s, keys, locks, bus, idx, "test")
	return &harness{machine: m, index: idx, bus: bus, sub: sub}
}

// expectEvent asserts the next posted event matches want and mirrors it into
// the local index, the way the engine's own bus subscriber would — a worker
// is subscribed to its own posts, so subsequent Observe calls must see the
// updated health just as they would in the wired engine.
func (h *harness) expectEvent(t *testing.T, want events.Type) events.Event {
	t.Helper()
	select {
	case ev := <-h.sub:
		assert.Equal(t, want, ev.Type)
		h.index.SetHealth(ev.IP, ev.Port, ev.Hostname, healthFor(ev.Type))
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s event", want)
		return events.Event{}
	}
}

func healthFor(typ events.Type) target.Health {
	switch typ {
	case events.Healthy:
		return target.Healthy
	case events.Unhealthy:
		return target.Unhealthy
	case events.MostlyHealthy:
		return target.MostlyHealthy
	case events.MostlyUnhealthy:
		return target.MostlyUnhealthy
	default:
		return target.Unhealthy
	}
}

func (h *harness) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.sub:
		t.Fatalf("unexpected event posted: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRiseFromUnhealthy(t *testing.T) {
	h := newHarness(t, "10.0.0.1", 80, target.Unhealthy)
	ctx := context.Background()

	require.NoError(t, h.machine.Observe(ctx, "10.0.0.1", 80, "", target.Healthy, 5, Success))
	h.expectEvent(t, events.MostlyUnhealthy)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.machine.Observe(ctx, "10.0.0.1", 80, "", target.Healthy, 5, Success))
		h.expectNoEvent(t)
	}

	require.NoError(t, h.machine.Observe(ctx, "10.0.0.1", 80, "", target.Healthy, 5, Success))
	h.expectEvent(t, events.Healthy)
}

func TestMaskedCounterMovesHealthyToMostlyHealthy(t *testing.T) {
	h := newHarness(t, "10.0.0.2", 443, target.Healthy)
	ctx := context.Background()

	require.NoError(t, h.machine.Observe(ctx, "10.0.0.2", 443, "", target.Unhealthy, 5, HTTP))

	word, ok, err := h.machine.store.Get(h.machine.keys.Counter("10.0.0.2", 443, ""))
	require.NoError(t, err)
	require.True(t, ok)
	packed := store.DecodeInt64(word)
	assert.EqualValues(t, 0, store.ExtractCounter(packed, store.ShiftSuccess))
	assert.EqualValues(t, 1, store.ExtractCounter(packed, store.ShiftHTTP))
	assert.EqualValues(t, 0, store.ExtractCounter(packed, store.ShiftTCP))
	assert.EqualValues(t, 0, store.ExtractCounter(packed, store.ShiftTimeout))

	h.expectEvent(t, events.MostlyHealthy)
}

func TestDisabledCategoryIsNoop(t *testing.T) {
	h := newHarness(t, "10.0.0.3", 80, target.Healthy)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.machine.Observe(ctx, "10.0.0.3", 80, "", target.Unhealthy, 0, Timeout))
	}
	h.expectNoEvent(t)

	_, ok, err := h.machine.store.Get(h.machine.keys.Counter("10.0.0.3", 80, ""))
	require.NoError(t, err)
	assert.False(t, ok, "disabled category must never touch the store")
}

func TestThresholdSaturationShortcuts(t *testing.T) {
	h := newHarness(t, "10.0.0.4", 80, target.Unhealthy)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, h.machine.Observe(ctx, "10.0.0.4", 80, "", target.Unhealthy, 2, TCP))
	}
	h.expectNoEvent(t)

	_, ok, err := h.machine.store.Get(h.machine.keys.Counter("10.0.0.4", 80, ""))
	require.NoError(t, err)
	assert.False(t, ok, "already-saturated direction must never increment the counter")
}

func TestSetStatusForcesOverride(t *testing.T) {
	h := newHarness(t, "10.0.0.5", 80, target.Healthy)
	ctx := context.Background()

	require.NoError(t, h.machine.Observe(ctx, "10.0.0.5", 80, "", target.Healthy, 10, Success))
	h.expectNoEvent(t)

	require.NoError(t, h.machine.SetStatus(ctx, "10.0.0.5", 80, "", false))
	h.expectEvent(t, events.Unhealthy)

	word, ok, err := h.machine.store.Get(h.machine.keys.Counter("10.0.0.5", 80, ""))
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0, store.DecodeInt64(word))
}

func TestUnknownTargetIsSyncLagNotError(t *testing.T) {
	h := newHarness(t, "10.0.0.6", 80, target.Healthy)
	ctx := context.Background()

	err := h.machine.Observe(ctx, "10.0.0.9", 80, "", target.Unhealthy, 2, TCP)
	require.NoError(t, err)
	h.expectNoEvent(t)
}
