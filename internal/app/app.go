package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/handlers"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/services/classifier"
	"github.com/ternarybob/regwatch/internal/services/ingest"
	"github.com/ternarybob/regwatch/internal/services/llm"
	"github.com/ternarybob/regwatch/internal/services/scheduler"
	badgerstore "github.com/ternarybob/regwatch/internal/storage/badger"
)

// App holds all application services and handlers
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Storage interfaces.StorageManager

	LLMService        interfaces.LLMService
	IngestService     *ingest.Service
	ClassifierService *classifier.Service
	Scheduler         *scheduler.Service

	AnnouncementHandler *handlers.AnnouncementHandler
	PipelineHandler     *handlers.PipelineHandler
	StatusHandler       *handlers.StatusHandler
	WSHandler           *handlers.WebSocketHandler
}

// New creates the application, wiring services bottom-up: storage, LLM
// provider, pipeline services, scheduler, then handlers. Configuration is
// validated before anything opens.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	storage, err := badgerstore.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	llmService, err := llm.NewLLMService(cfg, logger)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	ingestService, err := ingest.NewService(cfg, storage, logger)
	if err != nil {
		llmService.Close()
		storage.Close()
		return nil, fmt.Errorf("failed to initialize ingest service: %w", err)
	}

	classifierService, err := classifier.NewService(&cfg.Classifier, storage, llmService, logger)
	if err != nil {
		llmService.Close()
		storage.Close()
		return nil, fmt.Errorf("failed to initialize classifier service: %w", err)
	}

	app := &App{
		Config:            cfg,
		Logger:            logger,
		Storage:           storage,
		LLMService:        llmService,
		IngestService:     ingestService,
		ClassifierService: classifierService,
		Scheduler:         scheduler.NewService(logger),
	}

	app.WSHandler = handlers.NewWebSocketHandler(logger)
	classifierService.SetPublishListener(app.WSHandler.BroadcastPublished)

	app.AnnouncementHandler = handlers.NewAnnouncementHandler(storage, logger)
	app.PipelineHandler = handlers.NewPipelineHandler(app.Scheduler, logger)
	app.StatusHandler = handlers.NewStatusHandler(storage, llmService, app.Scheduler, logger)

	if err := app.registerJobs(); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// registerJobs wires the pipeline invocations onto their cron schedules.
func (a *App) registerJobs() error {
	leaseTimeout, err := time.ParseDuration(a.Config.Scheduler.LeaseTimeout)
	if err != nil {
		return fmt.Errorf("invalid scheduler.lease_timeout '%s': %w", a.Config.Scheduler.LeaseTimeout, err)
	}

	if err := a.Scheduler.RegisterJob("ingest", a.Config.Scheduler.IngestSchedule, func() error {
		_, err := a.IngestService.Run(context.Background())
		return err
	}); err != nil {
		return err
	}

	if err := a.Scheduler.RegisterJob("classify", a.Config.Scheduler.ClassifySchedule, func() error {
		_, err := a.ClassifierService.Run(context.Background())
		return err
	}); err != nil {
		return err
	}

	// Stale-claim sweep: entries stuck in processing past the lease (a
	// crash mid-run, for example) return to pending.
	if err := a.Scheduler.RegisterJob("sweep", a.Config.Scheduler.SweepSchedule, func() error {
		released, err := a.Storage.Queue().ReleaseStale(context.Background(), leaseTimeout)
		if err != nil {
			return err
		}
		if released > 0 {
			a.Logger.Info().Int("released", released).Msg("Stale queue claims returned to pending")
		}
		return nil
	}); err != nil {
		return err
	}

	return nil
}

// StartScheduler begins scheduled pipeline runs when enabled.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
		return nil
	}
	return a.Scheduler.Start()
}

// Close shuts down all services in reverse initialization order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
