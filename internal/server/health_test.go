package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msmeflow/quoteflow/internal/config"
	"github.com/msmeflow/quoteflow/internal/records"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/storage"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testContext(t *testing.T) *ServerContext {
	t.Helper()
	objects, err := storage.NewLocalStore(t.TempDir(), "http://127.0.0.1:8787/objects")
	require.NoError(t, err)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"refresh token expired"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(backend.Close)

	sc, err := NewServerContext(context.Background(), Options{
		Config: config.Config{
			AppURL:          "http://127.0.0.1:8787",
			BackendURL:      backend.URL,
			RefreshInterval: time.Hour,
			HTTPTimeout:     time.Second,
		},
		KV:      session.NewMemoryKV(),
		Objects: objects,
		Records: records.NewMemoryStore(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)

	rec, body := get(t, h.LivenessHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	sc := testContext(t)
	h := NewHealthChecker(sc)

	rec, body := get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	sc.checks["database"] = fakePinger{err: errors.New("connection refused")}
	rec, body = get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["database"])

	delete(sc.checks, "database")
	h.SetReady(false)
	rec, _ = get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthChecker_ShuttingDown(t *testing.T) {
	sc := testContext(t)
	h := NewHealthChecker(sc)
	require.NoError(t, sc.Shutdown())

	rec, body := get(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting down", body["status"])
}

func TestHealthChecker_DetailedReportsRefreshFailure(t *testing.T) {
	sc := testContext(t)
	h := NewHealthChecker(sc)

	rec, body := get(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "refresh")

	ctx := context.Background()
	require.NoError(t, sc.Sessions().Save(ctx, session.Session{AccessToken: "a", RefreshToken: "r"}))
	_, err := sc.Refresher().RefreshOnce(ctx)
	require.Error(t, err)

	rec, body = get(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.NotEmpty(t, body["refresh"].(map[string]any)["last_error"])
}
