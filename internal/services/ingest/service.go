package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/feeds"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
)

// RunResult summarizes one ingestion invocation. Errors holds per-feed
// failures; a populated Errors list with nonzero Fetched is a partial
// success, not a failure.
type RunResult struct {
	Fetched   int               `json:"fetched"`
	New       int               `json:"new"`
	Updated   int               `json:"updated"`
	Enqueued  int               `json:"enqueued"`
	Filtered  int               `json:"filtered"` // Dropped by the time-window filter
	Message   string            `json:"message,omitempty"`
	Errors    []feeds.FeedError `json:"errors,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  string            `json:"duration"`
}

// Service runs the ingestion pipeline: fetch all configured feeds
// concurrently, normalize, filter by timeframe, upsert announcements and
// enqueue them for classification.
type Service struct {
	storage    interfaces.StorageManager
	client     *feeds.Client
	normalizer *feeds.Normalizer
	logger     arbor.ILogger
	feedDefs   []feeds.Feed
	fetchLimit int
}

// NewService creates the ingest service from feed configuration.
// Configuration is validated fail-fast; a fatal config error aborts before
// any storage mutation.
func NewService(cfg *common.Config, storage interfaces.StorageManager, logger arbor.ILogger) (*Service, error) {
	timeout, err := time.ParseDuration(cfg.Feeds.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid feeds.timeout '%s': %w", cfg.Feeds.Timeout, err)
	}

	feedDefs := buildFeedDefs(&cfg.Feeds)
	if len(feedDefs) == 0 {
		return nil, fmt.Errorf("no feed URLs configured")
	}

	clientOpts := []feeds.ClientOption{
		feeds.WithHTTPClient(&http.Client{Timeout: timeout}),
		feeds.WithLogger(logger),
	}
	if cfg.Feeds.UserAgent != "" {
		clientOpts = append(clientOpts, feeds.WithUserAgent(cfg.Feeds.UserAgent))
	}

	return &Service{
		storage:    storage,
		client:     feeds.NewClient(clientOpts...),
		normalizer: feeds.NewNormalizer(),
		logger:     logger,
		feedDefs:   feedDefs,
		fetchLimit: cfg.Feeds.FetchLimit,
	}, nil
}

// buildFeedDefs assembles the feed list from configuration, skipping feeds
// with no URL.
func buildFeedDefs(cfg *common.FeedsConfig) []feeds.Feed {
	var defs []feeds.Feed
	if cfg.FDAPressURL != "" {
		defs = append(defs, feeds.Feed{
			Name:      "fda_press",
			URL:       cfg.FDAPressURL,
			Source:    models.FeedSourceFDAPress,
			Timeframe: cfg.FDATimeframe,
		})
	}
	if cfg.FDAMedWatchURL != "" {
		defs = append(defs, feeds.Feed{
			Name:      "fda_medwatch",
			URL:       cfg.FDAMedWatchURL,
			Source:    models.FeedSourceFDAMedWatch,
			Timeframe: cfg.FDATimeframe,
		})
	}
	if cfg.SECEdgarURL != "" {
		defs = append(defs, feeds.Feed{
			Name:      "sec_edgar",
			URL:       cfg.SECEdgarURL,
			Source:    models.FeedSourceSECEDGAR,
			Timeframe: cfg.SECTimeframe,
		})
	}
	return defs
}

// Run executes one ingestion invocation. Per-feed failures are isolated:
// one unreachable feed never blocks the others. Returns an error only for
// fatal storage failures that abort the run.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now().UTC()
	result := &RunResult{StartedAt: started}
	defer func() { result.Duration = time.Since(started).Round(time.Millisecond).String() }()

	// Ensure source records exist before any announcement writes.
	for _, def := range s.feedDefs {
		if _, err := s.storage.Sources().Ensure(ctx, def.Name, def.URL, def.Source); err != nil {
			return nil, fmt.Errorf("failed to ensure feed source %s: %w", def.Name, err)
		}
	}

	fetched, failures := s.client.FetchAll(ctx, s.feedDefs)
	result.Errors = failures

	now := time.Now().UTC()
	for _, fr := range fetched {
		if err := s.ingestFeed(ctx, fr, now, result); err != nil {
			result.Errors = append(result.Errors, feeds.FeedError{
				Feed: fr.Feed.Name,
				Err:  err.Error(),
			})
		}
	}

	if result.Fetched == 0 && len(result.Errors) == 0 {
		// Zero items with no failures is a descriptive success, not an error.
		result.Message = "all feeds fetched successfully, no entries found"
	}

	s.logger.Info().
		Int("fetched", result.Fetched).
		Int("new", result.New).
		Int("updated", result.Updated).
		Int("enqueued", result.Enqueued).
		Int("filtered", result.Filtered).
		Int("feed_errors", len(result.Errors)).
		Str("duration", result.Duration).
		Msg("Ingestion run finished")

	return result, nil
}

// ingestFeed normalizes one fetched feed document and writes its
// announcements.
func (s *Service) ingestFeed(ctx context.Context, fr feeds.FetchResult, now time.Time, result *RunResult) error {
	announcements, err := s.normalizer.Normalize(fr.Feed, fr.Body)
	if err != nil {
		return err
	}

	cutoff := common.CutoffFor(fr.Feed.Timeframe, now)
	accepted := 0
	for i := range announcements {
		ann := &announcements[i]

		// Retain only entries published strictly after the cutoff.
		if !ann.PublishedAt.After(cutoff) {
			result.Filtered++
			continue
		}
		if s.fetchLimit > 0 && accepted >= s.fetchLimit {
			break
		}
		accepted++
		result.Fetched++

		created, err := s.storage.Announcements().Upsert(ctx, ann)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("source_id", ann.SourceID).
				Msg("Failed to upsert announcement")
			continue
		}
		if created {
			result.New++
		} else {
			result.Updated++
		}

		enqueued, err := s.storage.Queue().EnqueueIfAbsent(ctx, ann.SourceID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("source_id", ann.SourceID).
				Msg("Failed to enqueue announcement")
			continue
		}
		if enqueued {
			result.Enqueued++
		}
	}

	if err := s.storage.Sources().TouchFetched(ctx, fr.Feed.Name, now); err != nil {
		s.logger.Warn().
			Err(err).
			Str("feed", fr.Feed.Name).
			Msg("Failed to record feed fetch time")
	}

	s.logger.Debug().
		Str("feed", fr.Feed.Name).
		Int("items", len(announcements)).
		Int("accepted", accepted).
		Msg("Feed ingested")

	return nil
}
