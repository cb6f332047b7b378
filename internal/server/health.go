package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/msmeflow/quoteflow/internal/session"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusDegraded     = "degraded"
)

const pingTimeout = 2 * time.Second

// HealthChecker serves the health endpoints of the agent. A nil
// ServerContext is allowed and reports no dependencies.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext
	startTime time.Time
}

// NewHealthChecker returns a checker that starts out ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady flips readiness; serve clears it before draining connections.
func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }

func (h *HealthChecker) IsReady() bool { return h.ready.Load() }

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type DetailedHealthResponse struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Refresh      *session.Status   `json:"refresh,omitempty"`
}

// Handlers maps each health endpoint path to its handler.
func (h *HealthChecker) Handlers() map[string]http.Handler {
	return map[string]http.Handler{
		"/healthz":          h.LivenessHandler(),
		"/readyz":           h.ReadinessHandler(),
		"/healthz/detailed": h.DetailedHealthHandler(),
	}
}

func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	for path, handler := range h.Handlers() {
		mux.Handle(path, handler)
	}
}

// LivenessHandler always answers ok while the process is up.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 while not ready, shutting down, or when any
// registered dependency fails its ping.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"ready": healthStatusOK, "shutdown": healthStatusOK}
		ok := true
		if !h.IsReady() {
			checks["ready"] = healthStatusNotReady
			ok = false
		}
		if h.shuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			ok = false
		}
		deps, depsOK := h.pingAll(r.Context())
		for name, status := range deps {
			checks[name] = status
		}

		if ok && depsOK {
			writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
			return
		}
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
	})
}

// DetailedHealthHandler includes uptime, dependency pings and the refresher
// status. A failed refresh or dependency answers "degraded" with 200: the
// agent keeps serving on the last good tokens.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deps, healthy := h.pingAll(r.Context())
		resp := DetailedHealthResponse{
			Status:       healthStatusOK,
			Uptime:       time.Since(h.startTime).Truncate(time.Second).String(),
			Dependencies: deps,
		}
		if h.sc != nil && h.sc.Refresher() != nil {
			st := h.sc.Refresher().Status()
			resp.Refresh = &st
			healthy = healthy && st.LastError == ""
		}

		code := http.StatusOK
		switch {
		case !h.IsReady():
			resp.Status, code = healthStatusNotReady, http.StatusServiceUnavailable
		case h.shuttingDown():
			resp.Status, code = healthStatusShuttingDown, http.StatusServiceUnavailable
		case !healthy:
			resp.Status = healthStatusDegraded
		}
		writeHealth(w, code, resp)
	})
}

func (h *HealthChecker) shuttingDown() bool {
	return h.sc != nil && h.sc.IsShutdown()
}

// pingAll pings the registered dependencies in name order.
func (h *HealthChecker) pingAll(ctx context.Context) (map[string]string, bool) {
	if h.sc == nil {
		return nil, true
	}
	checks := h.sc.Checks()
	if len(checks) == 0 {
		return nil, true
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := checks[name].Ping(pctx)
		cancel()
		if err != nil {
			out[name] = err.Error()
			ok = false
			continue
		}
		out[name] = healthStatusOK
	}
	return out, ok
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
