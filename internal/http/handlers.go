package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.store == nil {
		checks["storage"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	// The broker is optional: events are best effort and never block writes.
	switch {
	case s.events == nil:
		checks["events"] = "not_configured"
	case s.events.Healthy():
		checks["events"] = "ok"
	default:
		checks["events"] = "degraded"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.GetMetrics().ClientCount,
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()

	w.WriteHeader(http.StatusOK)

	// Prometheus text exposition format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP card_purchases_total Card purchases registered\n")
	fmt.Fprintf(w, "# TYPE card_purchases_total counter\n")
	fmt.Fprintf(w, "card_purchases_total %d\n\n", s.appMetrics.purchases.Load())

	fmt.Fprintf(w, "# HELP invoice_payments_total Card invoices paid\n")
	fmt.Fprintf(w, "# TYPE invoice_payments_total counter\n")
	fmt.Fprintf(w, "invoice_payments_total %d\n\n", s.appMetrics.payments.Load())

	fmt.Fprintf(w, "# HELP task_moves_total Board moves that changed the layout\n")
	fmt.Fprintf(w, "# TYPE task_moves_total counter\n")
	fmt.Fprintf(w, "task_moves_total %d\n\n", s.appMetrics.moves.Load())

	if len(s.caches) > 0 {
		names := make([]string, 0, len(s.caches))
		for name := range s.caches {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
		fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_entries{type=%q} %d\n", name, s.caches[name].Size())
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.securityDetector.SuspiciousCount())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.appMetrics.uptime).Seconds())
}
