package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name      string
	schedule  string
	handler   func() error
	cronID    cron.EntryID
	lastRun   *time.Time
	isRunning bool
	lastError string
}

// JobStatus is the externally visible state of one scheduled job.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	IsRunning bool       `json:"is_running"`
	LastError string     `json:"last_error,omitempty"`
}

// Service schedules the pipeline jobs (ingest, classify, sweep) on cron
// expressions. Each job holds its own slot: a tick that arrives while the
// previous run is still going is skipped, never stacked.
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// RegisterJob adds a named job on a cron schedule. Must be called before
// Start.
func (s *Service) RegisterJob(name, schedule string, handler func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job '%s' is already registered", name)
	}

	entry := &jobEntry{
		name:     name,
		schedule: schedule,
		handler:  handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() { s.runJob(entry) })
	if err != nil {
		return fmt.Errorf("failed to register job '%s' with schedule '%s': %w", name, schedule, err)
	}
	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Scheduled job registered")

	return nil
}

// Start begins the scheduler
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for in-flight jobs to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Trigger runs a registered job immediately, outside its schedule. Returns
// an error when the job is unknown, still running from a previous tick, or
// finished with an error.
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown job '%s'", name)
	}

	if !s.runJob(entry) {
		return fmt.Errorf("job '%s' is already running", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.lastError != "" {
		return fmt.Errorf("job '%s' failed: %s", name, entry.lastError)
	}
	return nil
}

// Status reports the state of all registered jobs.
func (s *Service) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := JobStatus{
			Name:      entry.name,
			Schedule:  entry.schedule,
			LastRun:   entry.lastRun,
			IsRunning: entry.isRunning,
			LastError: entry.lastError,
		}
		if s.running {
			next := s.cron.Entry(entry.cronID).Next
			if !next.IsZero() {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// runJob executes one job, skipping the tick when the previous run of the
// same job has not finished. Returns false when the run was skipped.
func (s *Service) runJob(entry *jobEntry) bool {
	s.mu.Lock()
	if entry.isRunning {
		s.mu.Unlock()
		s.logger.Warn().
			Str("job", entry.name).
			Msg("Previous run still in progress, skipping")
		return false
	}
	entry.isRunning = true
	s.mu.Unlock()

	started := time.Now().UTC()
	s.logger.Debug().Str("job", entry.name).Msg("Job starting")

	err := entry.handler()

	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &started
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job", entry.name).
			Dur("duration", time.Since(started)).
			Msg("Job failed")
		return true
	}
	s.logger.Debug().
		Str("job", entry.name).
		Dur("duration", time.Since(started)).
		Msg("Job finished")
	return true
}
