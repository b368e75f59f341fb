package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentinel/pkg/store"
)

func testConfig(t *testing.T, name string) Config {
	cfg := DefaultConfig(name, "test-shm")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestAddTargetThenGetStatus(t *testing.T) {
	s := store.NewMemStore()
	e, err := New(testConfig(t, "svc"), s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", true))

	healthy, err := e.GetTargetStatus("10.0.0.1", 80, "")
	require.NoError(t, err)
	assert.True(t, healthy)
}

func TestAddTargetIsIdempotent(t *testing.T) {
	s := store.NewMemStore()
	e, err := New(testConfig(t, "svc"), s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", true))
	require.NoError(t, e.ReportFailure(ctx, "10.0.0.1", 80, ""))
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", false))

	list, err := e.GetTargetList()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestGetTargetStatusUnknownReturnsNotFound(t *testing.T) {
	s := store.NewMemStore()
	e, err := New(testConfig(t, "svc"), s)
	require.NoError(t, err)
	defer e.Stop()

	_, err = e.GetTargetStatus("10.0.0.9", 80, "")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRemoveTargetDropsFromIndex(t *testing.T) {
	s := store.NewMemStore()
	e, err := New(testConfig(t, "svc"), s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", true))
	require.NoError(t, e.RemoveTarget(ctx, "10.0.0.1", 80, ""))

	_, err = e.GetTargetStatus("10.0.0.1", 80, "")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestClearEmptiesIndex(t *testing.T) {
	s := store.NewMemStore()
	e, err := New(testConfig(t, "svc"), s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", true))
	require.NoError(t, e.AddTarget(ctx, "10.0.0.2", 80, "", "", true))
	require.NoError(t, e.Clear(ctx))

	list, err := e.GetTargetList()
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestReportFailureFlipsToUnhealthyAtThreshold exercises C5->C4 wiring end
// to end: enough passive failures flip the public verdict.
func TestReportFailureFlipsToUnhealthyAtThreshold(t *testing.T) {
	s := store.NewMemStore()
	cfg := testConfig(t, "svc")
	cfg.Checks.Passive.Unhealthy.HTTPFailures = 2
	cfg.Checks.Passive.Unhealthy.TCPFailures = 2
	e, err := New(cfg, s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", true))

	require.NoError(t, e.ReportFailure(ctx, "10.0.0.1", 80, ""))
	waitForVerdict(t, e, "10.0.0.1", 80, "", true)

	require.NoError(t, e.ReportFailure(ctx, "10.0.0.1", 80, ""))
	waitForVerdict(t, e, "10.0.0.1", 80, "", false)
}

func TestReportHTTPStatusRoutesByStatusSet(t *testing.T) {
	s := store.NewMemStore()
	cfg := testConfig(t, "svc")
	e, err := New(cfg, s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", false))

	// 500 is in unhealthy.http_statuses by default but the target is
	// already fully unhealthy, so this is a saturation no-op.
	require.NoError(t, e.ReportHTTPStatus(ctx, "10.0.0.1", 80, "", 500))
	healthy, err := e.GetTargetStatus("10.0.0.1", 80, "")
	require.NoError(t, err)
	assert.False(t, healthy)

	// 999 is in neither set: ignored, still unhealthy.
	require.NoError(t, e.ReportHTTPStatus(ctx, "10.0.0.1", 80, "", 999))
	healthy, err = e.GetTargetStatus("10.0.0.1", 80, "")
	require.NoError(t, err)
	assert.False(t, healthy)
}

func TestSetTargetStatusForcesOverrideRegardlessOfCounters(t *testing.T) {
	s := store.NewMemStore()
	e, err := New(testConfig(t, "svc"), s)
	require.NoError(t, err)
	defer e.Stop()

	ctx := context.Background()
	require.NoError(t, e.AddTarget(ctx, "10.0.0.1", 80, "", "", true))
	require.NoError(t, e.SetTargetStatus(ctx, "10.0.0.1", 80, "", false))
	// The forced verdict reaches the index through the event subscriber.
	waitForVerdict(t, e, "10.0.0.1", 80, "", false)

	healthy, err := e.GetTargetStatus("10.0.0.1", 80, "")
	require.NoError(t, err)
	assert.False(t, healthy)
}

// TestCrossWorkerPropagation covers two Engine instances sharing one
// store.Store under the same (shm_name, name). Each Engine has its own
// in-process event bus, which fans out only to its own subscriber, so what
// the two share is the store and its locks. This test confirms that a
// target added through worker A does not appear in worker B's local index.
func TestCrossWorkerPropagation(t *testing.T) {
	s := store.NewMemStore()
	cfgA := testConfig(t, "shared-svc")
	cfgA.Checks.Passive.Unhealthy.HTTPFailures = 1
	cfgA.Checks.Passive.Unhealthy.TCPFailures = 1
	cfgB := cfgA

	workerA, err := New(cfgA, s)
	require.NoError(t, err)
	defer workerA.Stop()
	workerB, err := New(cfgB, s)
	require.NoError(t, err)
	defer workerB.Stop()

	ctx := context.Background()
	require.NoError(t, workerA.AddTarget(ctx, "10.0.0.1", 80, "", "", true))

	// worker B never saw the add; its index has no entry yet.
	_, err = workerB.GetTargetStatus("10.0.0.1", 80, "")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func waitForVerdict(t *testing.T, e *Engine, ip string, port int, hostname string, want bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		healthy, err := e.GetTargetStatus(ip, port, hostname)
		require.NoError(t, err)
		if healthy == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("verdict for %s:%d/%s never reached %v", ip, port, hostname, want)
}
