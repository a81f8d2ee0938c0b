package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Priority is the coarse urgency bucket for an announcement
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Sentiment is the directional market-impact lean
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Exchanges is the closed set of accepted exchange codes
var Exchanges = map[string]bool{
	"NYSE":   true,
	"NASDAQ": true,
	"OTC":    true,
	"AMEX":   true,
}

// Bounded field lengths for model-generated text
const (
	MaxSummaryLength      = 500
	MaxMarketImpactLength = 300
	MaxTags               = 5
)

// ClassificationResult is the validated output of one relevance
// classification. Every field is clamped into its declared range or enum
// before persistence; the raw model output is never trusted. Results are
// immutable once written — re-classification replaces via upsert.
type ClassificationResult struct {
	AnnouncementID    string     `badgerhold:"key" json:"announcement_id" validate:"required"`
	Ticker            *string    `json:"ticker,omitempty"`
	Exchange          *string    `json:"exchange,omitempty" validate:"omitempty,oneof=NYSE NASDAQ OTC AMEX"`
	RelevanceScore    int        `json:"relevance_score" validate:"gte=0,lte=100"`
	Priority          Priority   `json:"priority" validate:"oneof=high medium low"`
	Sentiment         Sentiment  `json:"sentiment" validate:"oneof=bullish bearish neutral"`
	SentimentStrength int        `json:"sentiment_strength" validate:"gte=0,lte=100"`
	Summary           string     `json:"summary" validate:"max=500"`
	MarketImpact      string     `json:"market_impact" validate:"max=300"` // Qualitative only, never numeric price predictions
	Tags              []string   `json:"tags,omitempty" validate:"max=5"`
	IsPublished       bool       `badgerhold:"index" json:"is_published"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Validate asserts the post-clamp invariants using go-playground/validator.
// A failure here indicates a bug in the clamping layer, not bad model output.
func (r *ClassificationResult) Validate() error {
	return validator.New().Struct(r)
}
