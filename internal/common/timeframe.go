package common

import (
	"time"
)

// DefaultTimeframe is the window applied when a token is not recognized.
// Unknown tokens deliberately fall back rather than erroring so that a
// misconfigured feed still ingests something useful.
const DefaultTimeframe = 24 * time.Hour

// timeframeWindows maps symbolic timeframe tokens to their durations.
// Minute-scale tokens exist for the near-real-time EDGAR feed; hour and
// longer tokens for the FDA feeds.
var timeframeWindows = map[string]time.Duration{
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"24h": 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1mo": 30 * 24 * time.Hour,
}

// TimeframeWindow resolves a symbolic timeframe token to a duration.
// Returns DefaultTimeframe for tokens outside the recognized set.
func TimeframeWindow(token string) time.Duration {
	if window, ok := timeframeWindows[token]; ok {
		return window
	}
	return DefaultTimeframe
}

// CutoffFor computes the cutoff instant for a timeframe token relative to now.
func CutoffFor(token string, now time.Time) time.Time {
	return now.Add(-TimeframeWindow(token))
}
