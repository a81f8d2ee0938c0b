package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AnnouncementView is one dashboard row: the announcement joined with its
// published classification.
type AnnouncementView struct {
	Announcement   *models.Announcement         `json:"announcement"`
	Classification *models.ClassificationResult `json:"classification"`
}

// AnnouncementHandler serves the dashboard read projection over published
// classification results.
type AnnouncementHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewAnnouncementHandler creates a new announcement handler
func NewAnnouncementHandler(storage interfaces.StorageManager, logger arbor.ILogger) *AnnouncementHandler {
	return &AnnouncementHandler{
		storage: storage,
		logger:  logger,
	}
}

// List handles GET /api/announcements. Filters: priority, sentiment,
// category (announcement subtype), source, timeframe (symbolic token,
// default 24h), limit. Only published results are surfaced. An empty
// result set returns success with a message; it is never an error.
func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	priority := q.Get("priority")
	sentiment := q.Get("sentiment")
	category := q.Get("category")
	source := q.Get("source")
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = "24h"
	}
	limit := QueryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	cutoff := common.CutoffFor(timeframe, time.Now().UTC())

	// Over-fetch published results so post-join filters still fill the page.
	results, err := h.storage.Results().ListPublished(r.Context(), maxListLimit*4)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list published results")
		WriteError(w, http.StatusInternalServerError, "failed to load announcements")
		return
	}

	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.AnnouncementID)
	}
	announcements, err := h.storage.Announcements().GetBatch(r.Context(), ids)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load announcements for published results")
		WriteError(w, http.StatusInternalServerError, "failed to load announcements")
		return
	}
	annByID := make(map[string]*models.Announcement, len(announcements))
	for _, ann := range announcements {
		annByID[ann.SourceID] = ann
	}

	views := make([]AnnouncementView, 0, limit)
	for _, res := range results {
		ann, ok := annByID[res.AnnouncementID]
		if !ok {
			continue
		}
		if !ann.PublishedAt.After(cutoff) {
			continue
		}
		if priority != "" && string(res.Priority) != priority {
			continue
		}
		if sentiment != "" && string(res.Sentiment) != sentiment {
			continue
		}
		if category != "" && string(ann.Type) != category {
			continue
		}
		if source != "" && string(ann.Source) != source {
			continue
		}
		views = append(views, AnnouncementView{Announcement: ann, Classification: res})
		if len(views) == limit {
			break
		}
	}

	response := map[string]interface{}{
		"status": "success",
		"count":  len(views),
		"items":  views,
	}
	if len(views) == 0 {
		response["message"] = "no announcements match the current filters"
	}
	WriteJSON(w, http.StatusOK, response)
}

// Stats handles GET /api/announcements/stats with pipeline counters for
// the dashboard header.
func (h *AnnouncementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()
	total, err := h.storage.Announcements().Count(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count announcements")
		WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	queueCounts := make(map[string]int, 4)
	for _, status := range []models.QueueStatus{
		models.QueueStatusPending,
		models.QueueStatusProcessing,
		models.QueueStatusCompleted,
		models.QueueStatusFailed,
	} {
		count, err := h.storage.Queue().CountByStatus(ctx, status)
		if err != nil {
			h.logger.Error().Err(err).Str("queue_status", string(status)).Msg("Failed to count queue entries")
			WriteError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		queueCounts[string(status)] = count
	}

	published, err := h.storage.Results().CountPublished(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count published results")
		WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"announcements": total,
		"queue":         queueCounts,
		"published":     published,
	})
}
