package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"facilitysync/internal/auth"
	"facilitysync/internal/jobs"
	"facilitysync/internal/logger"
	"facilitysync/internal/rbac"
	"facilitysync/internal/search"
	"facilitysync/internal/util"
)

type HTTPServer struct {
	service *Service
	metrics http.Handler
	logger  *slog.Logger
}

// NewHTTPServer builds the API. metrics may be nil, in which case /metrics
// is not served.
func NewHTTPServer(service *Service, metrics http.Handler, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{service: service, metrics: metrics, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.URL.Path == "/metrics" && s.metrics != nil {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if r.URL.Path == "/facilities" {
		facilities, err := s.service.Facilities(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"facilities": facilities})
		return
	}

	parts := splitPath(r.URL.Path)

	// GET /jobs/check-status/{job_id}
	if len(parts) == 3 && parts[0] == "jobs" && parts[1] == "check-status" {
		job, err := s.service.JobStatus(r.Context(), parts[2])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		payload := map[string]any{"job_id": job.ID, "status": job.Status}
		if job.Error != "" {
			payload["error"] = job.Error
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 2 && parts[0] == "proposals" && parts[1] == "search" {
		s.handleSearch(w, r)
		return
	}

	if len(parts) == 2 && parts[0] == "proposals" {
		payload, err := s.service.Proposal(r.Context(), parts[1])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) > 0 && parts[0] == "sync" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if !s.service.Can(session.Role, rbac.ActionSync) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		s.handleSync(w, r, session, parts[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ping(ctx) {
		if err == nil {
			checks[name] = map[string]any{"status": "ok"}
			continue
		}
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks[name] = map[string]any{"status": "error", "error": err.Error()}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:       strings.TrimSpace(query.Get("q")),
		Instrument: strings.TrimSpace(query.Get("instrument")),
		Cycle:      strings.TrimSpace(query.Get("cycle")),
		Limit:      20,
	}
	for _, field := range []struct {
		name   string
		target *int
	}{{"limit", &q.Limit}, {"offset", &q.Offset}} {
		raw := strings.TrimSpace(query.Get(field.name))
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", field.name+" must be a non-negative integer", nil)
			return
		}
		*field.target = parsed
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	writeJSON(w, http.StatusOK, s.service.SearchProposals(q))
}

// handleSync serves /sync/...; parts excludes the leading "sync".
func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()
	var (
		job jobs.Job
		err error
	)
	switch {
	case len(parts) == 3 && parts[0] == "proposal" && parts[1] == "types":
		job, err = s.service.SyncProposalTypes(ctx, parts[2])
	case len(parts) == 2 && parts[0] == "proposal":
		job, err = s.service.SyncProposal(ctx, parts[1], strings.TrimSpace(r.URL.Query().Get("facility")))
	case len(parts) == 3 && parts[0] == "proposals" && parts[1] == "cycle":
		job, err = s.service.SyncProposalsForCycle(ctx, parts[2])
	case len(parts) == 2 && parts[0] == "cycles":
		job, err = s.service.SyncCycles(ctx, parts[1])
	case len(parts) == 2 && parts[0] == "update-cycles":
		job, err = s.service.UpdateCycleInformation(ctx, parts[1], r.URL.Query().Get("cycle"))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	logger.FromContext(ctx, s.logger).Info("sync job created",
		"job_id", job.ID, "action", string(job.Action), "subject", session.Subject)
	writeJSON(w, http.StatusOK, job)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		logger.FromContext(r.Context(), s.logger).Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), s.logger).Error("request failed", "error", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("Cache-Control", "no-store")
		writer.Header().Set("Content-Type", "application/json")
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		logger.FromContext(r.Context(), s.logger).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
