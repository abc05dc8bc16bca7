package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	blog "budgetbot/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and the backing store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.ready(ctx); err != nil {
			blog.FromContext(ctx).Warn("Readiness check failed", blog.FieldError, err)
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type metric struct {
	name, help, kind string
	value            any
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	metrics := []metric{
		{"http_requests_total", "Total number of HTTP requests", "counter", tm.TotalRequests},
		{"http_server_errors_total", "Responses with a 5xx status", "counter", tm.ServerErrors},
		{"rate_limit_hits_total", "Requests refused by the rate limiter", "counter", s.limiter.Hits()},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", s.limiter.ActiveClients()},
		{"suspicious_requests_total", "Requests flagged as probes", "counter", s.detector.SuspiciousRequests()},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.started).Seconds())},
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP budgetbot_%s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE budgetbot_%s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "budgetbot_%s %d\n\n", m.name, m.value)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
