package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db            *BadgerDB
	announcements interfaces.AnnouncementStorage
	queue         interfaces.QueueStorage
	results       interfaces.ResultStorage
	sources       interfaces.SourceStorage
	logger        arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:            db,
		announcements: NewAnnouncementStorage(db, logger),
		queue:         NewQueueStorage(db, logger),
		results:       NewResultStorage(db, logger),
		sources:       NewSourceStorage(db, logger),
		logger:        logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Announcements returns the Announcement storage interface
func (m *Manager) Announcements() interfaces.AnnouncementStorage {
	return m.announcements
}

// Queue returns the Queue storage interface
func (m *Manager) Queue() interfaces.QueueStorage {
	return m.queue
}

// Results returns the Result storage interface
func (m *Manager) Results() interfaces.ResultStorage {
	return m.results
}

// Sources returns the Source storage interface
func (m *Manager) Sources() interfaces.SourceStorage {
	return m.sources
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
