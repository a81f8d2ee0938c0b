package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// QueueStorage implements the QueueStorage interface for Badger.
// Claims run as a single conditional update inside one transaction, so two
// concurrent classification runs can never claim the same entry: the loser
// observes zero matching pending rows and skips.
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewQueueStorage creates a new QueueStorage instance
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) interfaces.QueueStorage {
	return &QueueStorage{
		db:     db,
		logger: logger,
	}
}

// EnqueueIfAbsent creates a pending entry unless a non-failed entry already
// exists for the announcement. Failed entries do not block a fresh enqueue —
// re-ingestion is the manual re-trigger path for failures. The check and
// insert run in one transaction so a manual trigger racing the scheduled
// ingest cannot double-enqueue; the losing transaction conflicts and is
// retried against the winner's write.
func (s *QueueStorage) EnqueueIfAbsent(ctx context.Context, announcementID string) (bool, error) {
	if announcementID == "" {
		return false, fmt.Errorf("announcement ID is required")
	}

	created := false
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.Store().Badger().Update(func(tx *badgerv4.Txn) error {
			created = false

			var existing []models.QueueEntry
			if err := s.db.Store().TxFind(tx, &existing, badgerhold.Where("AnnouncementID").Eq(announcementID)); err != nil {
				return fmt.Errorf("failed to check existing queue entries: %w", err)
			}
			for _, entry := range existing {
				if entry.Status != models.QueueStatusFailed {
					return nil
				}
			}

			entry := models.QueueEntry{
				ID:             common.NewQueueEntryID(),
				AnnouncementID: announcementID,
				Status:         models.QueueStatusPending,
				ScheduledAt:    time.Now(),
			}
			if err := s.db.Store().TxInsert(tx, entry.ID, entry); err != nil {
				return fmt.Errorf("failed to enqueue announcement %s: %w", announcementID, err)
			}
			created = true
			return nil
		})
		if !errors.Is(err, badgerv4.ErrConflict) {
			break
		}
	}
	if err != nil {
		return false, err
	}

	if created {
		s.logger.Trace().
			Str("announcement_id", announcementID).
			Msg("Queue entry created")
	}
	return created, nil
}

// ClaimPending atomically transitions up to limit pending entries to
// processing, oldest-scheduled first, and returns the claimed set.
func (s *QueueStorage) ClaimPending(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := time.Now()
	var claimed []*models.QueueEntry

	query := badgerhold.Where("Status").Eq(models.QueueStatusPending).
		SortBy("ScheduledAt").Limit(limit)

	err := s.db.Store().UpdateMatching(&models.QueueEntry{}, query, func(record interface{}) error {
		entry, ok := record.(*models.QueueEntry)
		if !ok {
			return fmt.Errorf("unexpected record type %T", record)
		}
		entry.Status = models.QueueStatusProcessing
		claimedAt := now
		entry.ClaimedAt = &claimedAt

		snapshot := *entry
		claimed = append(claimed, &snapshot)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending entries: %w", err)
	}

	s.logger.Debug().
		Int("claimed", len(claimed)).
		Int("limit", limit).
		Msg("Claimed pending queue entries")

	return claimed, nil
}

// MarkCompleted transitions an entry to completed
func (s *QueueStorage) MarkCompleted(ctx context.Context, entryID string) error {
	var entry models.QueueEntry
	if err := s.db.Store().Get(entryID, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("queue entry not found: %s", entryID)
		}
		return fmt.Errorf("failed to get queue entry: %w", err)
	}

	now := time.Now()
	entry.Status = models.QueueStatusCompleted
	entry.CompletedAt = &now

	if err := s.db.Store().Upsert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to mark queue entry completed: %w", err)
	}
	return nil
}

// MarkFailed transitions an entry to failed, recording the error text and
// incrementing the retry counter for future re-trigger automation.
func (s *QueueStorage) MarkFailed(ctx context.Context, entryID string, errMsg string) error {
	var entry models.QueueEntry
	if err := s.db.Store().Get(entryID, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("queue entry not found: %s", entryID)
		}
		return fmt.Errorf("failed to get queue entry: %w", err)
	}

	now := time.Now()
	entry.Status = models.QueueStatusFailed
	entry.LastError = errMsg
	entry.RetryCount++
	entry.CompletedAt = &now

	if err := s.db.Store().Upsert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to mark queue entry failed: %w", err)
	}

	s.logger.Warn().
		Str("entry_id", entryID).
		Int("retry_count", entry.RetryCount).
		Str("error", errMsg).
		Msg("Queue entry marked failed")

	return nil
}

// ReleaseStale returns processing entries claimed longer ago than the lease
// to pending, so a crashed worker cannot permanently strand them.
func (s *QueueStorage) ReleaseStale(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().Add(-lease)
	released := 0

	query := badgerhold.Where("Status").Eq(models.QueueStatusProcessing)
	err := s.db.Store().UpdateMatching(&models.QueueEntry{}, query, func(record interface{}) error {
		entry, ok := record.(*models.QueueEntry)
		if !ok {
			return fmt.Errorf("unexpected record type %T", record)
		}
		if entry.ClaimedAt == nil || entry.ClaimedAt.Before(cutoff) {
			entry.Status = models.QueueStatusPending
			entry.ClaimedAt = nil
			released++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release stale entries: %w", err)
	}

	if released > 0 {
		s.logger.Info().
			Int("released", released).
			Dur("lease", lease).
			Msg("Released stale processing entries to pending")
	}

	return released, nil
}

// GetByAnnouncement returns the queue entries for an announcement
func (s *QueueStorage) GetByAnnouncement(ctx context.Context, announcementID string) ([]*models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.db.Store().Find(&entries, badgerhold.Where("AnnouncementID").Eq(announcementID))
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entries: %w", err)
	}

	result := make([]*models.QueueEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// CountByStatus returns the number of entries in the given status
func (s *QueueStorage) CountByStatus(ctx context.Context, status models.QueueStatus) (int, error) {
	count, err := s.db.Store().Count(&models.QueueEntry{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return int(count), nil
}
