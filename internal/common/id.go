package common

import (
	"github.com/google/uuid"
)

// NewQueueEntryID generates a unique queue entry ID with the "q_" prefix
// Format: q_<uuid>
func NewQueueEntryID() string {
	return "q_" + uuid.New().String()
}
