package http

import (
	"context"
	"net/http"
	"time"

	"subtrack/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether templates are loaded and the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(ctx).Warn("Readiness check failed", log.FieldError, err)
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

// writeServiceError logs unexpected failures and writes the mapped response.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	resp.Write(w)
}
