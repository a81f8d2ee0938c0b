package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/regwatch/internal/models"
)

// AnnouncementListOptions filters announcement queries for the dashboard
// projection. Priority and sentiment filters apply to classification results
// and are handled at the join layer, not here.
type AnnouncementListOptions struct {
	Source models.FeedSource
	Type   models.AnnouncementType
	Since  time.Time // Only announcements published strictly after this instant
	Limit  int
}

// AnnouncementStorage persists normalized announcements keyed by
// feed-native source ID.
type AnnouncementStorage interface {
	// Upsert inserts or updates by source-native ID. Returns true when a new
	// record was created.
	Upsert(ctx context.Context, announcement *models.Announcement) (bool, error)

	// Get returns the announcement for a source ID, or an error if absent
	Get(ctx context.Context, sourceID string) (*models.Announcement, error)

	// GetBatch returns announcements for the given source IDs, skipping
	// missing ones
	GetBatch(ctx context.Context, sourceIDs []string) ([]*models.Announcement, error)

	// List returns announcements matching the options, newest first
	List(ctx context.Context, opts *AnnouncementListOptions) ([]*models.Announcement, error)

	// Count returns the total number of stored announcements
	Count(ctx context.Context) (int, error)
}

// QueueStorage manages the classification queue state machine.
type QueueStorage interface {
	// EnqueueIfAbsent creates a pending entry for the announcement unless a
	// non-failed entry already exists. Returns true when an entry was created.
	EnqueueIfAbsent(ctx context.Context, announcementID string) (bool, error)

	// ClaimPending atomically transitions up to limit pending entries
	// (oldest-scheduled first) to processing and returns the claimed set.
	// Concurrent callers never claim the same entry.
	ClaimPending(ctx context.Context, limit int) ([]*models.QueueEntry, error)

	// MarkCompleted transitions an entry to completed
	MarkCompleted(ctx context.Context, entryID string) error

	// MarkFailed transitions an entry to failed, recording the error and
	// incrementing the retry counter
	MarkFailed(ctx context.Context, entryID string, errMsg string) error

	// ReleaseStale returns processing entries claimed longer ago than the
	// lease to pending. Returns the number released.
	ReleaseStale(ctx context.Context, lease time.Duration) (int, error)

	// GetByAnnouncement returns the queue entries for an announcement
	GetByAnnouncement(ctx context.Context, announcementID string) ([]*models.QueueEntry, error)

	// CountByStatus returns the number of entries in the given status
	CountByStatus(ctx context.Context, status models.QueueStatus) (int, error)
}

// ResultStorage persists validated classification results.
type ResultStorage interface {
	// Upsert writes a result keyed by announcement ID
	Upsert(ctx context.Context, result *models.ClassificationResult) error

	// Get returns the result for an announcement, or an error if absent
	Get(ctx context.Context, announcementID string) (*models.ClassificationResult, error)

	// ListPublished returns published results, newest publication first
	ListPublished(ctx context.Context, limit int) ([]*models.ClassificationResult, error)

	// CountPublished returns the number of published results
	CountPublished(ctx context.Context) (int, error)
}

// SourceStorage manages the per-feed configuration records.
type SourceStorage interface {
	// Ensure finds or creates the source record keyed by name (idempotent)
	Ensure(ctx context.Context, name string, url string, source models.FeedSource) (*models.FeedSourceRecord, error)

	// TouchFetched records a successful fetch time for the source
	TouchFetched(ctx context.Context, name string, at time.Time) error

	// List returns all source records
	List(ctx context.Context) ([]*models.FeedSourceRecord, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	Announcements() AnnouncementStorage
	Queue() QueueStorage
	Results() ResultStorage
	Sources() SourceStorage
	Close() error
}
