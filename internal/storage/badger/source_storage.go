package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SourceStorage implements the SourceStorage interface for Badger
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

// Ensure finds or creates the source record keyed by name. The operation is
// idempotent so correctness does not depend on single-process lifetime or an
// in-process memoized singleton.
func (s *SourceStorage) Ensure(ctx context.Context, name string, url string, source models.FeedSource) (*models.FeedSourceRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("source name is required")
	}

	var existing models.FeedSourceRecord
	err := s.db.Store().Get(name, &existing)
	switch err {
	case nil:
		// Keep the record current if the configured URL moved
		if existing.URL != url && url != "" {
			existing.URL = url
			if err := s.db.Store().Upsert(name, existing); err != nil {
				return nil, fmt.Errorf("failed to update source record: %w", err)
			}
		}
		return &existing, nil
	case badgerhold.ErrNotFound:
		record := models.FeedSourceRecord{
			Name:      name,
			URL:       url,
			Source:    source,
			CreatedAt: time.Now(),
		}
		if err := s.db.Store().Upsert(name, record); err != nil {
			return nil, fmt.Errorf("failed to create source record: %w", err)
		}
		s.logger.Debug().Str("name", name).Msg("Feed source record created")
		return &record, nil
	default:
		return nil, fmt.Errorf("failed to get source record: %w", err)
	}
}

// TouchFetched records a successful fetch time for the source
func (s *SourceStorage) TouchFetched(ctx context.Context, name string, at time.Time) error {
	var record models.FeedSourceRecord
	if err := s.db.Store().Get(name, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("source record not found: %s", name)
		}
		return fmt.Errorf("failed to get source record: %w", err)
	}

	record.LastFetchedAt = &at
	if err := s.db.Store().Upsert(name, record); err != nil {
		return fmt.Errorf("failed to update source record: %w", err)
	}
	return nil
}

// List returns all source records
func (s *SourceStorage) List(ctx context.Context) ([]*models.FeedSourceRecord, error) {
	var records []models.FeedSourceRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Name").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list source records: %w", err)
	}

	result := make([]*models.FeedSourceRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
