package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ResultStorage implements the ResultStorage interface for Badger
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert writes a result keyed by announcement ID. Results are validated
// against the schema invariants before they reach storage.
func (s *ResultStorage) Upsert(ctx context.Context, result *models.ClassificationResult) error {
	if result.AnnouncementID == "" {
		return fmt.Errorf("result announcement ID is required")
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("classification result failed validation: %w", err)
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(result.AnnouncementID, *result); err != nil {
		return fmt.Errorf("failed to upsert classification result: %w", err)
	}

	s.logger.Trace().
		Str("announcement_id", result.AnnouncementID).
		Int("relevance_score", result.RelevanceScore).
		Bool("published", result.IsPublished).
		Msg("Classification result stored")

	return nil
}

// Get returns the result for an announcement
func (s *ResultStorage) Get(ctx context.Context, announcementID string) (*models.ClassificationResult, error) {
	var result models.ClassificationResult
	if err := s.db.Store().Get(announcementID, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("classification result not found: %s", announcementID)
		}
		return nil, fmt.Errorf("failed to get classification result: %w", err)
	}
	return &result, nil
}

// ListPublished returns published results, newest publication first.
// Sorting happens in memory because PublishedAt is a pointer field.
func (s *ResultStorage) ListPublished(ctx context.Context, limit int) ([]*models.ClassificationResult, error) {
	var results []models.ClassificationResult
	err := s.db.Store().Find(&results, badgerhold.Where("IsPublished").Eq(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list published results: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		ti, tj := results[i].PublishedAt, results[j].PublishedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]*models.ClassificationResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

// CountPublished returns the number of published results
func (s *ResultStorage) CountPublished(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ClassificationResult{}, badgerhold.Where("IsPublished").Eq(true))
	if err != nil {
		return 0, fmt.Errorf("failed to count published results: %w", err)
	}
	return int(count), nil
}
