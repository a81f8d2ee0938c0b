package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/regwatch/internal/models"
)

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "bare array",
			input: `[{"id":"a"}]`,
		},
		{
			name:  "code fenced",
			input: "```json\n[{\"id\":\"a\"}]\n```",
		},
		{
			name:  "prose around array",
			input: `Here is the classification you asked for: [{"id":"a"}] Let me know if you need more.`,
		},
		{
			name:    "top level object",
			input:   `{"id":"a"}`,
			wantErr: true,
		},
		{
			name:    "no json at all",
			input:   "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "truncated array",
			input:   `[{"id":"a"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractJSONArray(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseClassificationResponse(t *testing.T) {
	response := "```json\n" + `[{"id":"ann-1","relevance_score":72,"priority":"high","sentiment":"bullish","sentiment_strength":65,"summary":"s","market_impact":"m","tags":["t"]}]` + "\n```"

	parsed, err := parseClassificationResponse(response)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "ann-1", parsed[0].ID)
	assert.Equal(t, 72, parsed[0].RelevanceScore)
}

func TestClampClassification_ValidatesAfterClamp(t *testing.T) {
	raw := rawClassification{
		ID:                "echoed-id",
		RelevanceScore:    250,
		Priority:          "urgent",
		Sentiment:         "mixed",
		SentimentStrength: 999,
		Summary:           "ok",
		MarketImpact:      "ok",
	}

	result := clampClassification(raw, "known-id", time.Now().UTC())

	assert.Equal(t, "known-id", result.AnnouncementID)
	assert.Equal(t, 100, result.RelevanceScore)
	assert.Equal(t, 100, result.SentimentStrength)
	assert.Equal(t, models.PriorityMedium, result.Priority)
	assert.Equal(t, models.SentimentNeutral, result.Sentiment)

	// Post-clamp results always satisfy the schema invariants.
	assert.NoError(t, result.Validate())
}

func TestFallbackClassification_DeterministicBySubtype(t *testing.T) {
	now := time.Now().UTC()
	ann := &models.Announcement{
		SourceID: "ann-f",
		Title:    "Company Recalls Product",
		Type:     models.TypeSafetyAlert,
	}

	first := fallbackClassification(ann, now)
	second := fallbackClassification(ann, now)

	assert.Equal(t, first, second)
	assert.Equal(t, 80, first.RelevanceScore)
	assert.Equal(t, models.PriorityHigh, first.Priority)
	assert.Equal(t, models.SentimentBearish, first.Sentiment)
	assert.Equal(t, 75, first.SentimentStrength)
	assert.NoError(t, first.Validate())
}

func TestFallbackClassification_UnknownSubtypeUsesDefault(t *testing.T) {
	ann := &models.Announcement{
		SourceID: "ann-u",
		Title:    "Something Unusual",
		Type:     models.TypeOther,
	}

	result := fallbackClassification(ann, time.Now().UTC())
	assert.Equal(t, 45, result.RelevanceScore)
	assert.Equal(t, models.PriorityMedium, result.Priority)
	assert.Equal(t, models.SentimentNeutral, result.Sentiment)
}

func TestNormalizeTicker(t *testing.T) {
	upper := "abc"
	got := normalizeTicker(&upper)
	require.NotNil(t, got)
	assert.Equal(t, "ABC", *got)

	empty := "  "
	assert.Nil(t, normalizeTicker(&empty))

	null := "null"
	assert.Nil(t, normalizeTicker(&null))
	assert.Nil(t, normalizeTicker(nil))
}

func TestNormalizeExchange(t *testing.T) {
	nyse := "nyse"
	got := normalizeExchange(&nyse)
	require.NotNil(t, got)
	assert.Equal(t, "NYSE", *got)

	lse := "LSE"
	assert.Nil(t, normalizeExchange(&lse))
	assert.Nil(t, normalizeExchange(nil))
}

func TestTruncateRunes_MultibyteSafe(t *testing.T) {
	s := "cafécafé"
	assert.Equal(t, "caféc", truncateRunes(s, 5))
	assert.Equal(t, s, truncateRunes(s, 100))
}
