package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/services/scheduler"
)

// PipelineHandler exposes manual trigger endpoints for the ingestion and
// classification jobs. Triggers run through the scheduler so manual runs
// share the overlap guard with cron ticks and show up in job status.
type PipelineHandler struct {
	scheduler *scheduler.Service
	logger    arbor.ILogger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(sched *scheduler.Service, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		scheduler: sched,
		logger:    logger,
	}
}

// TriggerIngest handles POST /api/ingest/trigger
func (h *PipelineHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, "ingest")
}

// TriggerClassify handles POST /api/classify/trigger
func (h *PipelineHandler) TriggerClassify(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, "classify")
}

func (h *PipelineHandler) trigger(w http.ResponseWriter, r *http.Request, job string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.scheduler.Trigger(job); err != nil {
		if strings.Contains(err.Error(), "already running") {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("job", job).Msg("Manual job trigger failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": job + " run completed",
	})
}
