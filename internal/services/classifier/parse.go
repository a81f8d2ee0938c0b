package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/regwatch/internal/models"
)

// rawClassification mirrors the JSON object the model is asked to return.
// Every field is treated as untrusted until clamped.
type rawClassification struct {
	ID                string   `json:"id"`
	Ticker            *string  `json:"ticker"`
	Exchange          *string  `json:"exchange"`
	RelevanceScore    int      `json:"relevance_score"`
	Priority          string   `json:"priority"`
	Sentiment         string   `json:"sentiment"`
	SentimentStrength int      `json:"sentiment_strength"`
	Summary           string   `json:"summary"`
	MarketImpact      string   `json:"market_impact"`
	Tags              []string `json:"tags"`
}

// rawCompanyStatus mirrors the JSON object the public-company filter is
// asked to return.
type rawCompanyStatus struct {
	ID       string  `json:"id"`
	IsPublic bool    `json:"is_public"`
	Ticker   *string `json:"ticker"`
	Exchange *string `json:"exchange"`
}

// extractJSONArray recovers the JSON array from a model response that may
// be wrapped in code fences or surrounded by prose. Returns an error when
// no well-formed array can be found or the top-level value is not an array.
func extractJSONArray(response string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(response)

	// Strip markdown code fences if present.
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	// Extract the first bracketed substring when prose surrounds the array.
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	candidate := cleaned[start : end+1]

	var probe []json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, fmt.Errorf("response is not a valid JSON array: %w", err)
	}

	return json.RawMessage(candidate), nil
}

// parseClassificationResponse decodes a model response into raw
// classification entries.
func parseClassificationResponse(response string) ([]rawClassification, error) {
	arr, err := extractJSONArray(response)
	if err != nil {
		return nil, err
	}

	var results []rawClassification
	if err := json.Unmarshal(arr, &results); err != nil {
		return nil, fmt.Errorf("classification entries do not match expected schema: %w", err)
	}
	return results, nil
}

// parseCompanyFilterResponse decodes a model response into raw company
// status entries.
func parseCompanyFilterResponse(response string) ([]rawCompanyStatus, error) {
	arr, err := extractJSONArray(response)
	if err != nil {
		return nil, err
	}

	var results []rawCompanyStatus
	if err := json.Unmarshal(arr, &results); err != nil {
		return nil, fmt.Errorf("company filter entries do not match expected schema: %w", err)
	}
	return results, nil
}

// clampClassification converts a raw model entry into a validated result
// for the given announcement. Every field is clamped independently; the
// echoed correlation id is re-validated and replaced with the known id when
// it does not match, since order determines correlation, not the echo.
func clampClassification(raw rawClassification, announcementID string, now time.Time) *models.ClassificationResult {
	result := &models.ClassificationResult{
		AnnouncementID:    announcementID,
		Ticker:            normalizeTicker(raw.Ticker),
		Exchange:          normalizeExchange(raw.Exchange),
		RelevanceScore:    clampScore(raw.RelevanceScore),
		Priority:          clampPriority(raw.Priority),
		Sentiment:         clampSentiment(raw.Sentiment),
		SentimentStrength: clampScore(raw.SentimentStrength),
		Summary:           truncateRunes(raw.Summary, models.MaxSummaryLength),
		MarketImpact:      truncateRunes(raw.MarketImpact, models.MaxMarketImpactLength),
		Tags:              clampTags(raw.Tags),
		CreatedAt:         now,
	}
	return result
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clampPriority(priority string) models.Priority {
	switch models.Priority(strings.ToLower(strings.TrimSpace(priority))) {
	case models.PriorityHigh:
		return models.PriorityHigh
	case models.PriorityLow:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func clampSentiment(sentiment string) models.Sentiment {
	switch models.Sentiment(strings.ToLower(strings.TrimSpace(sentiment))) {
	case models.SentimentBullish:
		return models.SentimentBullish
	case models.SentimentBearish:
		return models.SentimentBearish
	default:
		return models.SentimentNeutral
	}
}

// normalizeTicker upper-cases a ticker or drops it when empty.
func normalizeTicker(ticker *string) *string {
	if ticker == nil {
		return nil
	}
	t := strings.ToUpper(strings.TrimSpace(*ticker))
	if t == "" || t == "NULL" || t == "N/A" || t == "NONE" {
		return nil
	}
	return &t
}

// normalizeExchange keeps only exchanges from the closed accepted set.
func normalizeExchange(exchange *string) *string {
	if exchange == nil {
		return nil
	}
	e := strings.ToUpper(strings.TrimSpace(*exchange))
	if !models.Exchanges[e] {
		return nil
	}
	return &e
}

func clampTags(tags []string) []string {
	cleaned := make([]string, 0, models.MaxTags)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, truncateRunes(tag, 50))
		if len(cleaned) == models.MaxTags {
			break
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

// truncateRunes bounds a string by rune count, not bytes.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
