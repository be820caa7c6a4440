package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"qltc/internal/core"
	applog "qltc/internal/log"
	"qltc/internal/services"
)

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady reports 503 until templates are loaded and the transaction
// table is reachable with the expected header.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name, detail string) {
		checks[name] = detail
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	err := s.txs.CheckSchema(ctx)
	var cfgErr *core.ConfigError
	var schemaErr *services.SchemaMismatchError
	switch {
	case err == nil:
		checks["store"] = "ok"
	case errors.As(err, &cfgErr):
		fail("store", "not_configured: "+cfgErr.Error())
	case errors.As(err, &schemaErr):
		fail("store", "schema_mismatch: "+schemaErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		fail("store", "timeout")
	default:
		fail("store", fmt.Sprintf("failed: %v", err))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed",
			applog.FieldError, err,
			applog.FieldErrorType, errorType(err))
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"enabled":        s.rateLimiter.Enabled(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %.0f\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.TotalErrors)

	fmt.Fprintf(w, "# HELP transactions_changes_total Persisted transaction changes\n")
	fmt.Fprintf(w, "# TYPE transactions_changes_total counter\n")
	fmt.Fprintf(w, "transactions_changes_total{action=\"created\"} %d\n", atomic.LoadInt64(&s.appMetrics.created))
	fmt.Fprintf(w, "transactions_changes_total{action=\"updated\"} %d\n", atomic.LoadInt64(&s.appMetrics.updated))
	fmt.Fprintf(w, "transactions_changes_total{action=\"deleted\"} %d\n\n", atomic.LoadInt64(&s.appMetrics.deleted))

	counter("logins_total", "Successful logins", atomic.LoadInt64(&s.appMetrics.logins))
	counter("logins_failed_total", "Rejected logins", atomic.LoadInt64(&s.appMetrics.failedLogins))
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	counter("suspicious_requests_total", "Requests matching a scanner pattern", securityMetrics.SuspiciousRequests)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", float64(rateLimitMetrics.ClientCount))
	gauge("uptime_seconds", "Process uptime in seconds", time.Since(s.appMetrics.uptime).Seconds())
}
