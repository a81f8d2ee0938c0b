package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/regwatch/internal/common"
	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
	badgerstore "github.com/ternarybob/regwatch/internal/storage/badger"
)

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	mgr, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "ingest-test-db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

type feedItem struct {
	GUID string
	Age  time.Duration
}

// rssWithItems renders an FDA-style RSS document with one item per
// (guid, age) pair.
func rssWithItems(now time.Time, items ...feedItem) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>FDA Press Releases</title>`
	for _, item := range items {
		body += fmt.Sprintf(
			`<item><title>FDA Approves Drug %s</title><guid>%s</guid><link>https://www.fda.gov/%s</link><description>Approval details.</description><pubDate>%s</pubDate></item>`,
			item.GUID, item.GUID, item.GUID, now.Add(-item.Age).Format(time.RFC1123Z),
		)
	}
	return body + `</channel></rss>`
}

func testConfig(fdaURL string) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Feeds.FDAPressURL = fdaURL
	cfg.Feeds.FDAMedWatchURL = ""
	cfg.Feeds.SECEdgarURL = ""
	cfg.Feeds.FDATimeframe = "24h"
	return cfg
}

func TestRun_IngestsAndEnqueues(t *testing.T) {
	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(now,
			feedItem{"item-recent", 2 * time.Hour},
			feedItem{"item-stale", 30 * time.Hour},
		))
	}))
	defer server.Close()

	storage := newTestStorage(t)
	svc, err := NewService(testConfig(server.URL), storage, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	// The 2h-old item is inside the 24h window; the 30h-old one is not.
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Enqueued)
	assert.Equal(t, 1, result.Filtered)
	assert.Empty(t, result.Errors)

	_, err = storage.Announcements().Get(context.Background(), "item-recent")
	assert.NoError(t, err)
	_, err = storage.Announcements().Get(context.Background(), "item-stale")
	assert.Error(t, err)

	pending, err := storage.Queue().CountByStatus(context.Background(), models.QueueStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestRun_DoubleIngestIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(now, feedItem{"item-1", time.Hour}))
	}))
	defer server.Close()

	storage := newTestStorage(t)
	svc, err := NewService(testConfig(server.URL), storage, common.GetLogger())
	require.NoError(t, err)

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.New)
	assert.Equal(t, 1, first.Enqueued)

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.New)
	assert.Equal(t, 1, second.Updated)
	// A non-failed queue entry already exists, so nothing is re-enqueued.
	assert.Equal(t, 0, second.Enqueued)

	count, err := storage.Announcements().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := storage.Queue().GetByAnnouncement(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_FeedFailureIsIsolated(t *testing.T) {
	now := time.Now().UTC()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(now, feedItem{"item-ok", time.Hour}))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	cfg := testConfig(good.URL)
	cfg.Feeds.FDAMedWatchURL = bad.URL

	storage := newTestStorage(t)
	svc, err := NewService(cfg, storage, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	// The healthy feed still ingests; the failing one is reported.
	assert.Equal(t, 1, result.Fetched)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "fda_medwatch", result.Errors[0].Feed)
}

func TestRun_EmptyFeedIsDescriptiveSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)
	}))
	defer server.Close()

	storage := newTestStorage(t)
	svc, err := NewService(testConfig(server.URL), storage, common.GetLogger())
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Fetched)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Message)
}

func TestRun_CreatesSourceRecords(t *testing.T) {
	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(now, feedItem{"item-s", time.Hour}))
	}))
	defer server.Close()

	storage := newTestStorage(t)
	svc, err := NewService(testConfig(server.URL), storage, common.GetLogger())
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	// Ensure is idempotent: two runs still yield one source record, with
	// the fetch time recorded.
	sources, err := storage.Sources().List(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "fda_press", sources[0].Name)
	assert.NotNil(t, sources[0].LastFetchedAt)
}
