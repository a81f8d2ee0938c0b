package feeds

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FetchErrorKind classifies a feed fetch failure
type FetchErrorKind string

const (
	FetchErrorTimeout    FetchErrorKind = "timeout"
	FetchErrorDNS        FetchErrorKind = "dns"
	FetchErrorConnection FetchErrorKind = "connection"
	FetchErrorStatus     FetchErrorKind = "status"
)

// FetchError describes a failed feed fetch with its failure classification
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int // Set only for Kind == FetchErrorStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchErrorStatus {
		return fmt.Sprintf("feed fetch failed: %s (status: %d, url: %s)", e.Kind, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("feed fetch failed: %s (url: %s): %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyFetchError wraps a transport error with its failure kind
func classifyFetchError(url string, err error) *FetchError {
	kind := FetchErrorConnection

	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FetchErrorTimeout
	case errors.As(err, &dnsErr):
		kind = FetchErrorDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FetchErrorTimeout
	}

	return &FetchError{
		Kind: kind,
		URL:  url,
		Err:  err,
	}
}

// FeedError pairs a feed with the error its fetch or parse produced.
// Failures are isolated per feed; siblings carry on.
type FeedError struct {
	Feed string `json:"feed"`
	Err  string `json:"error"`
}
