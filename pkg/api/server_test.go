package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentinel/pkg/engine"
	"github.com/cuemby/sentinel/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng, err := engine.New(engine.DefaultConfig("svc", "test-shm"), store.NewMemStore())
	require.NoError(t, err)
	t.Cleanup(eng.Stop)
	return NewServer(eng)
}

func TestAddThenListTargets(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(targetRequest{IP: "10.0.0.1", Port: 80, Healthy: true})
	req := httptest.NewRequest(http.MethodPost, "/targets", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/targets", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp targetListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Targets, 1)
	assert.Equal(t, "10.0.0.1", resp.Targets[0].IP)
	assert.True(t, resp.Targets[0].Verdict)
}

func TestGetStatusUnknownTargetReturns404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/targets/status?ip=10.0.0.9&port=80", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetStatusThenGet(t *testing.T) {
	s := newTestServer(t)

	addBody, _ := json.Marshal(targetRequest{IP: "10.0.0.2", Port: 443, Healthy: true})
	req := httptest.NewRequest(http.MethodPost, "/targets", bytes.NewReader(addBody))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	setBody, _ := json.Marshal(targetRequest{IP: "10.0.0.2", Port: 443, Healthy: false})
	req = httptest.NewRequest(http.MethodPost, "/targets/status", bytes.NewReader(setBody))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The forced verdict reaches the engine's index through its event subscriber.
	require.Eventually(t, func() bool {
		healthy, err := s.eng.GetTargetStatus("10.0.0.2", 443, "")
		return err == nil && !healthy
	}, time.Second, 5*time.Millisecond)

	req = httptest.NewRequest(http.MethodGet, "/targets/status?ip=10.0.0.2&port=443", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.False(t, out["healthy"])
}

func TestRemoveTarget(t *testing.T) {
	s := newTestServer(t)

	addBody, _ := json.Marshal(targetRequest{IP: "10.0.0.3", Port: 80, Healthy: true})
	req := httptest.NewRequest(http.MethodPost, "/targets", bytes.NewReader(addBody))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/targets?ip=10.0.0.3&port=80", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/targets/status?ip=10.0.0.3&port=80", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
