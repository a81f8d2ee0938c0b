package models

import (
	"time"
)

// QueueStatus is the processing state of a queue entry.
// Transitions: pending -> processing -> {completed | failed}.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueEntry tracks the classification lifecycle of one Announcement.
// Failed entries retain the retry counter and last error for a future
// re-trigger; they are never auto-requeued.
type QueueEntry struct {
	ID             string      `badgerhold:"key" json:"id"`
	AnnouncementID string      `badgerhold:"index" json:"announcement_id"`
	Status         QueueStatus `badgerhold:"index" json:"status"`
	RetryCount     int         `json:"retry_count"`
	LastError      string      `json:"last_error,omitempty"`
	ScheduledAt    time.Time   `json:"scheduled_at"`
	ClaimedAt      *time.Time  `json:"claimed_at,omitempty"` // Lease timestamp; stale sweep returns old processing entries to pending
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// IsTerminal returns true when the entry has finished processing
func (e *QueueEntry) IsTerminal() bool {
	return e.Status == QueueStatusCompleted || e.Status == QueueStatusFailed
}
