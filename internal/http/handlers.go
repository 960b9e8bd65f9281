package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.deps.Clock.Now().Format(time.RFC3339),
		"uptime":    s.deps.Clock.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports not ready until the sign-in provider is loaded and every
// configured dependency answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	fail := func(name string, err error) {
		checks[name] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := s.deps.Auth.Ready().Err(); err != nil {
		fail("auth", err)
	} else {
		checks["auth"] = "ok"
	}

	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			fail(name, err)
			continue
		}
		checks[name] = "ok"
	}

	if s.deps.Queue != nil {
		if s.deps.Queue.IsRunning() {
			checks["write_queue"] = "ok"
		} else {
			checks["write_queue"] = "failed: not running"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	checks["sessions"] = map[string]any{"active": s.deps.Sessions.Len()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.deps.Clock.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
