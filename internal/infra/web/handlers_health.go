// File: internal/infra/web/handlers_health.go
package web

import (
	"context"
	"net/http"
	"time"
)

// handleHealthLive answers unconditionally: the process is scheduled and
// serving (spec.md §6).
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, struct {
		Status string `json:"status"`
	}{"live"})
}

// handleHealthReady probes the hard dependencies and reports a request
// latency sample, matching the teacher's /health handler generalized to
// Postgres and Redis (spec.md §6).
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbErr := s.dbProbe.Ping(ctx)
	redisErr := s.redisProbe.Ping(ctx)

	status := http.StatusOK
	degraded := false
	if dbErr != nil || redisErr != nil {
		status = http.StatusServiceUnavailable
		degraded = true
	}

	writeJSON(w, r, status, struct {
		Status       string `json:"status"`
		Degraded     bool   `json:"degraded"`
		DatabaseUp   bool   `json:"database_up"`
		RedisUp      bool   `json:"redis_up"`
		LatencyMs    int64  `json:"probe_latency_ms"`
	}{
		Status:     map[bool]string{true: "degraded", false: "ready"}[degraded],
		Degraded:   degraded,
		DatabaseUp: dbErr == nil,
		RedisUp:    redisErr == nil,
		LatencyMs:  time.Since(start).Milliseconds(),
	})
}
