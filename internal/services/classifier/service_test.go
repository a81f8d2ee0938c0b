package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
	badgerstore "github.com/ternarybob/regwatch/internal/storage/badger"
)

// mockLLM scripts model responses by request kind. Company filter requests
// are recognized by their user-message prefix.
type mockLLM struct {
	mu             sync.Mutex
	companyFn      func(prompt string) (string, error)
	classifyFn     func(prompt string) (string, error)
	classifyCalls  int
	companyCalls   int
	classifyPrompt []string
}

func (m *mockLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prompt := messages[len(messages)-1].Content
	if strings.HasPrefix(prompt, "Determine public-trading status") {
		m.companyCalls++
		if m.companyFn != nil {
			return m.companyFn(prompt)
		}
		return "[]", nil
	}

	m.classifyCalls++
	m.classifyPrompt = append(m.classifyPrompt, prompt)
	if m.classifyFn != nil {
		return m.classifyFn(prompt)
	}
	return "[]", nil
}

func (m *mockLLM) HealthCheck(ctx context.Context) error { return nil }
func (m *mockLLM) Close() error                          { return nil }

// allPublic scripts a company filter response marking every company public.
func allPublic(count int) func(string) (string, error) {
	return func(string) (string, error) {
		entries := make([]string, 0, count)
		for i := 0; i < count; i++ {
			entries = append(entries, `{"id":"","is_public":true,"ticker":null,"exchange":null}`)
		}
		return "[" + strings.Join(entries, ",") + "]", nil
	}
}

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	mgr, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "classifier-test-db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func testClassifierConfig() *common.ClassifierConfig {
	return &common.ClassifierConfig{
		BatchLimit:       50,
		SubBatchSize:     2,
		CompanyBatchSize: 15,
		BatchDelay:       "1ms",
		PublishThreshold: 50,
		DiscardThreshold: 30,
	}
}

func seedAnnouncement(t *testing.T, storage interfaces.StorageManager, id string, annType models.AnnouncementType, company string) {
	t.Helper()
	ctx := context.Background()

	_, err := storage.Announcements().Upsert(ctx, &models.Announcement{
		SourceID:    id,
		Title:       "Announcement " + id,
		Description: "Details for " + id,
		Source:      models.FeedSourceFDAPress,
		Type:        annType,
		CompanyName: company,
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	created, err := storage.Queue().EnqueueIfAbsent(ctx, id)
	require.NoError(t, err)
	require.True(t, created)
}

func classificationJSON(id string, score int) string {
	return fmt.Sprintf(`{"id":%q,"ticker":"mrdn","exchange":"NASDAQ","relevance_score":%d,"priority":"high","sentiment":"bullish","sentiment_strength":70,"summary":"Test summary","market_impact":"Likely positive for the issuer.","tags":["fda"]}`, id, score)
}

func TestRun_PublishesAboveThreshold(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-1", models.TypeDrugApproval, "Meridian Therapeutics Inc")

	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return "[" + classificationJSON("ann-1", 85) + "]", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Claimed)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 0, result.Failed)

	stored, err := storage.Results().Get(context.Background(), "ann-1")
	require.NoError(t, err)
	assert.True(t, stored.IsPublished)
	require.NotNil(t, stored.PublishedAt)
	assert.Equal(t, 85, stored.RelevanceScore)
	// Ticker comes back upper-cased regardless of what the model emitted.
	require.NotNil(t, stored.Ticker)
	assert.Equal(t, "MRDN", *stored.Ticker)

	pending, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)
	completed, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestRun_SuppressesBelowDiscardThreshold(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-low", models.TypeRegulatory, "Meridian Therapeutics Inc")

	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return "[" + classificationJSON("ann-low", 10) + "]", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Suppressed)

	// Suppressed entries complete without a durable result.
	_, err = storage.Results().Get(context.Background(), "ann-low")
	assert.Error(t, err)
	completed, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestRun_MidRangeStaysUnpublished(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-mid", models.TypeRegulatory, "Meridian Therapeutics Inc")

	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return "[" + classificationJSON("ann-mid", 40) + "]", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unpublished)

	stored, err := storage.Results().Get(context.Background(), "ann-mid")
	require.NoError(t, err)
	assert.False(t, stored.IsPublished)
	assert.Nil(t, stored.PublishedAt)
}

func TestRun_ShortArrayPadsWithFallback(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-a", models.TypeDrugApproval, "Meridian Therapeutics Inc")
	seedAnnouncement(t, storage, "ann-b", models.TypeSafetyAlert, "Clearview Optics Ltd")

	llm := &mockLLM{
		companyFn: allPublic(2),
		classifyFn: func(prompt string) (string, error) {
			// One object for a two-announcement sub-batch.
			if strings.Contains(prompt, "ann-a") {
				return "[" + classificationJSON("ann-a", 85) + "]", nil
			}
			return "[" + classificationJSON("ann-b", 85) + "]", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Claimed)
	assert.Equal(t, 1, result.Fallbacks)
	assert.Zero(t, result.Failed)

	// Every claimed entry reaches a terminal outcome; result count equals
	// input count even with a short model response.
	pending, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)
	processing, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusProcessing)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestRun_NonJSONResponseFallsBackWholeSubBatch(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-x", models.TypeMergerAcquisition, "Meridian Therapeutics Inc")
	seedAnnouncement(t, storage, "ann-y", models.TypeQuarterlyReport, "Clearview Optics Ltd")

	llm := &mockLLM{
		companyFn: allPublic(2),
		classifyFn: func(string) (string, error) {
			return "I am unable to classify these announcements today.", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fallbacks)
	assert.Zero(t, result.Failed)

	// Merger/acquisition fallback scores 90 and publishes; quarterly report
	// fallback scores 60 and stays unpublished.
	merger, err := storage.Results().Get(context.Background(), "ann-x")
	require.NoError(t, err)
	assert.Equal(t, 90, merger.RelevanceScore)
	assert.Equal(t, models.SentimentBullish, merger.Sentiment)
	assert.True(t, merger.IsPublished)

	quarterly, err := storage.Results().Get(context.Background(), "ann-y")
	require.NoError(t, err)
	assert.Equal(t, 60, quarterly.RelevanceScore)
	assert.Equal(t, models.SentimentNeutral, quarterly.Sentiment)
	assert.False(t, quarterly.IsPublished)
}

func TestRun_ProviderTimeoutFailsSubBatch(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-slow", models.TypeDrugApproval, "Meridian Therapeutics Inc")

	// Providers run the call under their own deadline, so the timeout
	// arrives through the error chain while the caller's context is live.
	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return "", fmt.Errorf("chat completion failed: %w", context.DeadlineExceeded)
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Fallbacks)
	assert.Zero(t, result.Published)

	// Timed-out entries fail with no durable result.
	_, err = storage.Results().Get(context.Background(), "ann-slow")
	assert.Error(t, err)

	entries, err := storage.Queue().GetByAnnouncement(context.Background(), "ann-slow")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.QueueStatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].LastError, "classification call expired")
}

func TestRun_CancelledCallFailsSubBatch(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-cancel", models.TypeSafetyAlert, "Meridian Therapeutics Inc")

	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return "", fmt.Errorf("chat completion failed: %w", context.Canceled)
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Fallbacks)
}

func TestRun_PrivateCompanyNeverClassified(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-private", models.TypeDrugApproval, "Family Pharma Holdings")

	llm := &mockLLM{
		companyFn: func(string) (string, error) {
			return `[{"id":"ann-private","is_public":false,"ticker":null,"exchange":null}]`, nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PrivateSkipped)
	assert.Zero(t, llm.classifyCalls)

	// No durable result; entry is completed, not failed.
	_, err = storage.Results().Get(context.Background(), "ann-private")
	assert.Error(t, err)
	completed, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestRun_UnparseableCompanyFilterTreatsAllAsPublic(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-c", models.TypeDrugApproval, "Meridian Therapeutics Inc")

	llm := &mockLLM{
		companyFn: func(string) (string, error) {
			return "no json here", nil
		},
		classifyFn: func(string) (string, error) {
			return "[" + classificationJSON("ann-c", 70) + "]", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	// Conservative bias: unresolved companies proceed to classification.
	assert.Zero(t, result.PrivateSkipped)
	assert.Equal(t, 1, result.Published)
}

func TestRun_ClampsOutOfRangeFields(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-clamp", models.TypeDrugApproval, "Meridian Therapeutics Inc")

	longSummary := strings.Repeat("x", 900)
	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return fmt.Sprintf(`[{"id":"wrong-id","ticker":" mrdn ","exchange":"LSE","relevance_score":150,"priority":"CRITICAL","sentiment":"very bullish","sentiment_strength":-20,"summary":%q,"market_impact":"fine","tags":["a","b","c","d","e","f","g"]}]`, longSummary), nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	// The echoed correlation id is ignored; the known id wins.
	stored, err := storage.Results().Get(context.Background(), "ann-clamp")
	require.NoError(t, err)
	assert.Equal(t, 100, stored.RelevanceScore)
	assert.Equal(t, models.PriorityMedium, stored.Priority)
	assert.Equal(t, models.SentimentNeutral, stored.Sentiment)
	assert.Equal(t, 0, stored.SentimentStrength)
	assert.Len(t, stored.Summary, models.MaxSummaryLength)
	assert.Len(t, stored.Tags, models.MaxTags)
	// Unknown exchange is dropped rather than stored.
	assert.Nil(t, stored.Exchange)
	require.NotNil(t, stored.Ticker)
	assert.Equal(t, "MRDN", *stored.Ticker)
}

func TestRun_ZeroPendingIsNoOp(t *testing.T) {
	storage := newTestStorage(t)
	llm := &mockLLM{}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)
	assert.Zero(t, llm.companyCalls)
	assert.Zero(t, llm.classifyCalls)
}

func TestNewService_RejectsInvalidThresholds(t *testing.T) {
	storage := newTestStorage(t)
	cfg := testClassifierConfig()
	cfg.DiscardThreshold = 60
	cfg.PublishThreshold = 50

	_, err := NewService(cfg, storage, &mockLLM{}, common.GetLogger())
	assert.Error(t, err)
}

func TestRun_PublishListenerReceivesPublishedResults(t *testing.T) {
	storage := newTestStorage(t)
	seedAnnouncement(t, storage, "ann-pub", models.TypeDrugApproval, "Meridian Therapeutics Inc")

	llm := &mockLLM{
		companyFn: allPublic(1),
		classifyFn: func(string) (string, error) {
			return "[" + classificationJSON("ann-pub", 95) + "]", nil
		},
	}

	svc, err := NewService(testClassifierConfig(), storage, llm, common.GetLogger())
	require.NoError(t, err)

	var published []*models.ClassificationResult
	svc.SetPublishListener(func(r *models.ClassificationResult) {
		published = append(published, r)
	})

	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, published, 1)
	assert.Equal(t, "ann-pub", published[0].AnnouncementID)
}
