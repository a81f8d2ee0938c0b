package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/models"
)

const (
	// DefaultTimeout is the default HTTP timeout for feed requests.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client to feed endpoints. Both the
	// FDA and SEC endpoints reject requests carrying a default Go UA.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxFeedBodySize caps the response body read per feed.
	maxFeedBodySize = 10 << 20 // 10 MB
)

// Feed defines a configured upstream feed endpoint.
type Feed struct {
	Name      string
	URL       string
	Source    models.FeedSource
	Timeframe string
}

// FetchResult pairs a feed with its raw response body.
type FetchResult struct {
	Feed Feed
	Body []byte
}

// Client fetches feed documents over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new feed fetch client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves a single feed document.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", feedURL).
			Msg("Fetching feed")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyFetchError(feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Kind:       FetchErrorStatus,
			URL:        feedURL,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, classifyFetchError(feedURL, err)
	}

	return body, nil
}

// FetchAll retrieves all configured feeds concurrently. A failure on one
// feed never blocks its siblings; failed feeds are reported alongside the
// successful results.
func (c *Client) FetchAll(ctx context.Context, feeds []Feed) ([]FetchResult, []FeedError) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	results := make([]FetchResult, 0, len(feeds))
	var failures []FeedError

	for _, feed := range feeds {
		wg.Add(1)
		go func(feed Feed) {
			defer wg.Done()

			body, err := c.Fetch(ctx, feed.URL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if c.logger != nil {
					c.logger.Warn().
						Str("feed", feed.Name).
						Err(err).
						Msg("Feed fetch failed")
				}
				failures = append(failures, FeedError{Feed: feed.Name, Err: err.Error()})
				return
			}
			results = append(results, FetchResult{Feed: feed, Body: body})
		}(feed)
	}

	wg.Wait()
	return results, failures
}
