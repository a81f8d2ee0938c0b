package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/services/scheduler"
)

// StatusHandler serves the ops surface: health, status and version.
type StatusHandler struct {
	storage   interfaces.StorageManager
	llm       interfaces.LLMService
	scheduler *scheduler.Service
	logger    arbor.ILogger
	startedAt time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(storage interfaces.StorageManager, llm interfaces.LLMService, sched *scheduler.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage:   storage,
		llm:       llm,
		scheduler: sched,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// Health handles GET /api/health. Probes storage and the LLM provider;
// either failing degrades the report and the status code.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	checks := map[string]string{
		"storage": "ok",
		"llm":     "ok",
	}
	healthy := true

	if _, err := h.storage.Announcements().Count(r.Context()); err != nil {
		checks["storage"] = err.Error()
		healthy = false
	}

	llmCtx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := h.llm.HealthCheck(llmCtx); err != nil {
		checks["llm"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	WriteJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}

// Status handles GET /api/status with uptime and scheduled job state.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var jobs []scheduler.JobStatus
	if h.scheduler != nil {
		jobs = h.scheduler.Status()
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"jobs":    jobs,
	})
}

// Version handles GET /api/version
func (h *StatusHandler) Version(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}
