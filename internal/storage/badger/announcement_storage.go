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

// AnnouncementStorage implements the AnnouncementStorage interface for Badger
type AnnouncementStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnnouncementStorage creates a new AnnouncementStorage instance
func NewAnnouncementStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnnouncementStorage {
	return &AnnouncementStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or updates an announcement by source-native ID.
// The CreatedAt of an existing record is preserved; UpdatedAt always advances.
func (s *AnnouncementStorage) Upsert(ctx context.Context, announcement *models.Announcement) (bool, error) {
	if announcement.SourceID == "" {
		return false, fmt.Errorf("announcement source ID is required")
	}

	now := time.Now()
	created := false

	var existing models.Announcement
	err := s.db.Store().Get(announcement.SourceID, &existing)
	switch err {
	case nil:
		announcement.CreatedAt = existing.CreatedAt
	case badgerhold.ErrNotFound:
		created = true
		announcement.CreatedAt = now
	default:
		return false, fmt.Errorf("failed to check existing announcement: %w", err)
	}
	announcement.UpdatedAt = now

	// Dereference pointer for a consistent badgerhold type prefix
	if err := s.db.Store().Upsert(announcement.SourceID, *announcement); err != nil {
		return false, fmt.Errorf("failed to upsert announcement: %w", err)
	}

	s.logger.Trace().
		Str("source_id", announcement.SourceID).
		Bool("created", created).
		Msg("Announcement upserted")

	return created, nil
}

// Get returns the announcement for a source ID
func (s *AnnouncementStorage) Get(ctx context.Context, sourceID string) (*models.Announcement, error) {
	var announcement models.Announcement
	if err := s.db.Store().Get(sourceID, &announcement); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("announcement not found: %s", sourceID)
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return &announcement, nil
}

// GetBatch returns announcements for the given source IDs, skipping missing ones
func (s *AnnouncementStorage) GetBatch(ctx context.Context, sourceIDs []string) ([]*models.Announcement, error) {
	announcements := make([]*models.Announcement, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		var announcement models.Announcement
		if err := s.db.Store().Get(id, &announcement); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("failed to get announcement %s: %w", id, err)
		}
		announcements = append(announcements, &announcement)
	}
	return announcements, nil
}

// List returns announcements matching the options, newest first
func (s *AnnouncementStorage) List(ctx context.Context, opts *interfaces.AnnouncementListOptions) ([]*models.Announcement, error) {
	query := badgerhold.Where("SourceID").Ne("")
	if opts != nil {
		if opts.Source != "" {
			query = badgerhold.Where("Source").Eq(opts.Source)
		}
		if opts.Type != "" {
			query = query.And("Type").Eq(opts.Type)
		}
		if !opts.Since.IsZero() {
			query = query.And("PublishedAt").Gt(opts.Since)
		}
		query = query.SortBy("PublishedAt").Reverse()
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	} else {
		query = query.SortBy("PublishedAt").Reverse()
	}

	var announcements []models.Announcement
	if err := s.db.Store().Find(&announcements, query); err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}

	result := make([]*models.Announcement, len(announcements))
	for i := range announcements {
		result[i] = &announcements[i]
	}
	return result, nil
}

// Count returns the total number of stored announcements
func (s *AnnouncementStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Announcement{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count announcements: %w", err)
	}
	return int(count), nil
}
