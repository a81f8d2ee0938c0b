package classifier

import (
	"time"

	"github.com/ternarybob/regwatch/internal/models"
)

// fallbackProfile is the deterministic classification assigned when the
// model call fails or its output cannot be recovered for an announcement.
type fallbackProfile struct {
	Score             int
	Priority          models.Priority
	Sentiment         models.Sentiment
	SentimentStrength int
}

// fallbackProfiles keys deterministic classifications by announcement
// subtype. No randomness: the same subtype always yields the same result.
var fallbackProfiles = map[models.AnnouncementType]fallbackProfile{
	models.TypeDrugApproval:      {Score: 75, Priority: models.PriorityHigh, Sentiment: models.SentimentBullish, SentimentStrength: 70},
	models.TypeSafetyAlert:       {Score: 80, Priority: models.PriorityHigh, Sentiment: models.SentimentBearish, SentimentStrength: 75},
	models.TypeDeviceApproval:    {Score: 60, Priority: models.PriorityMedium, Sentiment: models.SentimentBullish, SentimentStrength: 60},
	models.TypeMergerAcquisition: {Score: 90, Priority: models.PriorityHigh, Sentiment: models.SentimentBullish, SentimentStrength: 80},
	models.TypeStockOffering:     {Score: 85, Priority: models.PriorityHigh, Sentiment: models.SentimentBearish, SentimentStrength: 75},
	models.TypeQuarterlyReport:   {Score: 60, Priority: models.PriorityMedium, Sentiment: models.SentimentNeutral, SentimentStrength: 50},
	models.TypeAnnualReport:      {Score: 65, Priority: models.PriorityMedium, Sentiment: models.SentimentNeutral, SentimentStrength: 50},
}

// defaultFallbackProfile covers subtypes without a dedicated entry.
var defaultFallbackProfile = fallbackProfile{
	Score:             45,
	Priority:          models.PriorityMedium,
	Sentiment:         models.SentimentNeutral,
	SentimentStrength: 50,
}

// fallbackClassification builds the deterministic result for an
// announcement whose model classification could not be obtained.
func fallbackClassification(ann *models.Announcement, now time.Time) *models.ClassificationResult {
	profile, ok := fallbackProfiles[ann.Type]
	if !ok {
		profile = defaultFallbackProfile
	}

	return &models.ClassificationResult{
		AnnouncementID:    ann.SourceID,
		RelevanceScore:    profile.Score,
		Priority:          profile.Priority,
		Sentiment:         profile.Sentiment,
		SentimentStrength: profile.SentimentStrength,
		Summary:           truncateRunes(ann.Title, models.MaxSummaryLength),
		MarketImpact:      "Automated fallback classification; model output was unavailable for this announcement.",
		CreatedAt:         now,
	}
}
