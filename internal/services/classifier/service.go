package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
)

// RunResult summarizes one classification invocation.
type RunResult struct {
	Claimed        int `json:"claimed"`
	Published      int `json:"published"`
	Unpublished    int `json:"unpublished"`
	Suppressed     int `json:"suppressed"`
	PrivateSkipped int `json:"private_skipped"`
	Failed         int `json:"failed"`
	Fallbacks      int `json:"fallbacks"`
}

// entryPair binds a claimed queue entry to its announcement for the
// duration of one run.
type entryPair struct {
	Entry        *models.QueueEntry
	Announcement *models.Announcement
	Status       companyStatus
}

// Service runs the relevance-classification batch protocol: claim pending
// queue entries, resolve public-company status, classify in small
// sub-batches, and persist results gated by the publish threshold.
type Service struct {
	storage interfaces.StorageManager
	llm     interfaces.LLMService
	logger  arbor.ILogger

	// limiter enforces the fixed inter-batch delay between model calls.
	// Rate-limit avoidance against the upstream API, not a correctness
	// requirement.
	limiter *rate.Limiter

	batchLimit       int
	subBatchSize     int
	companyBatchSize int
	publishThreshold int
	discardThreshold int

	onPublish func(*models.ClassificationResult)
}

// NewService creates the classifier service. Configuration is validated
// fail-fast; a misconfigured classifier never claims entries.
func NewService(cfg *common.ClassifierConfig, storage interfaces.StorageManager, llm interfaces.LLMService, logger arbor.ILogger) (*Service, error) {
	if cfg.BatchLimit <= 0 {
		return nil, fmt.Errorf("classifier batch_limit must be positive, got %d", cfg.BatchLimit)
	}
	if cfg.SubBatchSize <= 0 {
		return nil, fmt.Errorf("classifier sub_batch_size must be positive, got %d", cfg.SubBatchSize)
	}
	if cfg.CompanyBatchSize <= 0 {
		return nil, fmt.Errorf("classifier company_batch_size must be positive, got %d", cfg.CompanyBatchSize)
	}
	if cfg.DiscardThreshold < 0 || cfg.PublishThreshold > 100 || cfg.DiscardThreshold >= cfg.PublishThreshold {
		return nil, fmt.Errorf("classifier thresholds invalid: discard %d must be below publish %d within [0,100]", cfg.DiscardThreshold, cfg.PublishThreshold)
	}

	batchDelay, err := time.ParseDuration(cfg.BatchDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier batch_delay '%s': %w", cfg.BatchDelay, err)
	}

	return &Service{
		storage:          storage,
		llm:              llm,
		logger:           logger,
		limiter:          rate.NewLimiter(rate.Every(batchDelay), 1),
		batchLimit:       cfg.BatchLimit,
		subBatchSize:     cfg.SubBatchSize,
		companyBatchSize: cfg.CompanyBatchSize,
		publishThreshold: cfg.PublishThreshold,
		discardThreshold: cfg.DiscardThreshold,
	}, nil
}

// SetPublishListener registers a callback invoked for each newly published
// result. Used to push live publication events to dashboard consumers.
func (s *Service) SetPublishListener(fn func(*models.ClassificationResult)) {
	s.onPublish = fn
}

// Run executes one classification invocation. Zero claimed entries is a
// successful no-op. Sub-batch failures are isolated; one bad sub-batch
// never halts the remainder of the run.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	entries, err := s.storage.Queue().ClaimPending(ctx, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending queue entries: %w", err)
	}
	result.Claimed = len(entries)
	if len(entries) == 0 {
		s.logger.Debug().Msg("No pending queue entries to classify")
		return result, nil
	}

	s.logger.Info().
		Int("claimed", len(entries)).
		Msg("Starting classification run")

	pairs := s.loadAnnouncements(ctx, entries, result)
	if len(pairs) == 0 {
		return result, nil
	}

	pairs, err = s.applyCompanyFilter(ctx, pairs, result)
	if err != nil {
		// Interrupted mid-filter; unprocessed entries stay in processing
		// until the stale sweep returns them to pending.
		return result, err
	}

	for start := 0; start < len(pairs); start += s.subBatchSize {
		end := start + s.subBatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		s.classifySubBatch(ctx, pairs[start:end], result)
	}

	s.logger.Info().
		Int("claimed", result.Claimed).
		Int("published", result.Published).
		Int("unpublished", result.Unpublished).
		Int("suppressed", result.Suppressed).
		Int("private_skipped", result.PrivateSkipped).
		Int("failed", result.Failed).
		Int("fallbacks", result.Fallbacks).
		Msg("Classification run finished")

	return result, nil
}

// loadAnnouncements resolves announcements for the claimed entries. Entries
// whose announcement has gone missing are failed immediately.
func (s *Service) loadAnnouncements(ctx context.Context, entries []*models.QueueEntry, result *RunResult) []entryPair {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.AnnouncementID)
	}

	announcements, err := s.storage.Announcements().GetBatch(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load announcements for claimed entries")
		for _, e := range entries {
			s.markFailed(ctx, e, fmt.Sprintf("failed to load announcement: %v", err), result)
		}
		return nil
	}

	byID := make(map[string]*models.Announcement, len(announcements))
	for _, ann := range announcements {
		byID[ann.SourceID] = ann
	}

	pairs := make([]entryPair, 0, len(entries))
	for _, e := range entries {
		ann, ok := byID[e.AnnouncementID]
		if !ok {
			s.markFailed(ctx, e, "announcement not found in storage", result)
			continue
		}
		pairs = append(pairs, entryPair{Entry: e, Announcement: ann})
	}
	return pairs
}

// applyCompanyFilter resolves public-trading status and completes entries
// for private companies without creating a durable result. Resolved
// ticker/exchange annotations are carried onto the announcements for the
// classification prompt.
func (s *Service) applyCompanyFilter(ctx context.Context, pairs []entryPair, result *RunResult) ([]entryPair, error) {
	announcements := make([]*models.Announcement, 0, len(pairs))
	for _, p := range pairs {
		announcements = append(announcements, p.Announcement)
	}

	statuses, err := s.filterCompanies(ctx, announcements)
	if err != nil {
		return nil, err
	}

	remaining := make([]entryPair, 0, len(pairs))
	for _, p := range pairs {
		status, ok := statuses[p.Announcement.SourceID]
		if !ok {
			status = conservativeStatus()
		}
		if !status.IsPublic {
			if err := s.storage.Queue().MarkCompleted(ctx, p.Entry.ID); err != nil {
				s.logger.Error().
					Err(err).
					Str("entry_id", p.Entry.ID).
					Msg("Failed to complete private-company entry")
				result.Failed++
				continue
			}
			result.PrivateSkipped++
			s.logger.Debug().
				Str("company", p.Announcement.CompanyName).
				Str("announcement_id", p.Announcement.SourceID).
				Msg("Skipping private company")
			continue
		}
		p.Status = status
		remaining = append(remaining, p)
	}
	return remaining, nil
}

// classifySubBatch runs one model call for a sub-batch and persists every
// entry's outcome. Model failures and unparseable output degrade to the
// deterministic fallback; context expiry and persistence errors fail the
// sub-batch entries.
func (s *Service) classifySubBatch(ctx context.Context, pairs []entryPair, result *RunResult) {
	if err := s.limiter.Wait(ctx); err != nil {
		for _, p := range pairs {
			s.markFailed(ctx, p.Entry, fmt.Sprintf("classification interrupted: %v", err), result)
		}
		return
	}

	announcements := make([]*models.Announcement, 0, len(pairs))
	for _, p := range pairs {
		announcements = append(announcements, p.Announcement)
	}

	messages := []interfaces.Message{
		{Role: "system", Content: classificationSystemPrompt},
		{Role: "user", Content: buildClassificationPrompt(announcements)},
	}

	now := time.Now().UTC()
	var parsed []rawClassification

	response, err := s.llm.Chat(ctx, messages)
	if err != nil {
		// Providers wrap the call in their own deadline, so a client-side
		// timeout surfaces through the error chain while the outer ctx is
		// still live. Either way the model was never fully consulted: fail
		// the sub-batch rather than fabricating fallback results.
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			for _, p := range pairs {
				s.markFailed(ctx, p.Entry, fmt.Sprintf("classification call expired: %v", err), result)
			}
			return
		}
		s.logger.Warn().
			Err(err).
			Int("sub_batch_size", len(pairs)).
			Msg("Classification call failed, applying fallback")
	} else {
		parsed, err = parseClassificationResponse(response)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int("sub_batch_size", len(pairs)).
				Msg("Classification response unparseable, applying fallback")
			parsed = nil
		}
	}

	for i, p := range pairs {
		var classification *models.ClassificationResult
		if i < len(parsed) {
			if parsed[i].ID != p.Announcement.SourceID {
				s.logger.Debug().
					Str("echoed_id", parsed[i].ID).
					Str("expected_id", p.Announcement.SourceID).
					Msg("Model echoed wrong correlation id, replacing")
			}
			classification = clampClassification(parsed[i], p.Announcement.SourceID, now)
		} else {
			// Short or absent array: deterministic fallback by subtype.
			classification = fallbackClassification(p.Announcement, now)
			result.Fallbacks++
		}

		s.persistOutcome(ctx, p, classification, now, result)
	}
}

// persistOutcome applies the threshold gates for one classified entry.
func (s *Service) persistOutcome(ctx context.Context, p entryPair, classification *models.ClassificationResult, now time.Time, result *RunResult) {
	if classification.RelevanceScore < s.discardThreshold {
		// Suppressed: below the relevance floor, complete with no durable
		// result. Not an error.
		if err := s.storage.Queue().MarkCompleted(ctx, p.Entry.ID); err != nil {
			s.markFailed(ctx, p.Entry, fmt.Sprintf("failed to complete suppressed entry: %v", err), result)
			return
		}
		result.Suppressed++
		return
	}

	// Company-filter annotations win over whatever the classifier echoed.
	if p.Status.Ticker != nil {
		classification.Ticker = p.Status.Ticker
	}
	if p.Status.Exchange != nil {
		classification.Exchange = p.Status.Exchange
	}

	if classification.RelevanceScore >= s.publishThreshold {
		classification.IsPublished = true
		publishedAt := now
		classification.PublishedAt = &publishedAt
	}

	if err := s.storage.Results().Upsert(ctx, classification); err != nil {
		s.markFailed(ctx, p.Entry, fmt.Sprintf("failed to persist classification: %v", err), result)
		return
	}
	if err := s.storage.Queue().MarkCompleted(ctx, p.Entry.ID); err != nil {
		s.markFailed(ctx, p.Entry, fmt.Sprintf("failed to complete entry: %v", err), result)
		return
	}

	if classification.IsPublished {
		result.Published++
		if s.onPublish != nil {
			s.onPublish(classification)
		}
	} else {
		result.Unpublished++
	}
}

func (s *Service) markFailed(ctx context.Context, entry *models.QueueEntry, msg string, result *RunResult) {
	if err := s.storage.Queue().MarkFailed(ctx, entry.ID, msg); err != nil {
		s.logger.Error().
			Err(err).
			Str("entry_id", entry.ID).
			Msg("Failed to mark queue entry failed")
	}
	result.Failed++
}
