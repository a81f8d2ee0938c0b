package classifier

import (
	"fmt"
	"strings"

	"github.com/ternarybob/regwatch/internal/models"
)

const classificationSystemPrompt = `You are a financial analyst classifying regulatory announcements for stock-trading relevance.

For EACH announcement you receive, return one JSON object with exactly these fields:
- "id": the announcement id echoed back unchanged
- "ticker": stock ticker symbol if the company is publicly traded, otherwise null
- "exchange": one of "NYSE", "NASDAQ", "OTC", "AMEX", or null
- "relevance_score": integer 0-100, how relevant this announcement is to stock trading decisions
- "priority": "high", "medium", or "low"
- "sentiment": "bullish", "bearish", or "neutral"
- "sentiment_strength": integer 0-100
- "summary": concise summary, at most 500 characters
- "market_impact": qualitative description of likely market impact, at most 300 characters. Never include numeric price targets or percentage price-movement predictions.
- "tags": array of at most 5 short topical tags

Respond with ONLY a JSON array containing exactly one object per input announcement, in the same order as the inputs. No prose, no markdown fences.`

const companyFilterSystemPrompt = `You determine whether companies are publicly traded on US stock exchanges.

For EACH company you receive, return one JSON object with exactly these fields:
- "id": the input id echoed back unchanged
- "is_public": true if the company is publicly traded on a US exchange, false otherwise
- "ticker": the stock ticker symbol if publicly traded, otherwise null
- "exchange": one of "NYSE", "NASDAQ", "OTC", "AMEX", or null

Respond with ONLY a JSON array containing exactly one object per input company, in the same order as the inputs. No prose, no markdown fences.`

// buildClassificationPrompt renders the user message for one sub-batch.
func buildClassificationPrompt(announcements []*models.Announcement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify the following %d regulatory announcements:\n", len(announcements))

	for i, ann := range announcements {
		fmt.Fprintf(&b, "\nAnnouncement %d:\n", i+1)
		fmt.Fprintf(&b, "id: %s\n", ann.SourceID)
		fmt.Fprintf(&b, "source: %s\n", ann.Source.DisplayName())
		fmt.Fprintf(&b, "type: %s\n", ann.Type)
		fmt.Fprintf(&b, "title: %s\n", ann.Title)
		if ann.CompanyName != "" {
			fmt.Fprintf(&b, "company: %s\n", ann.CompanyName)
		}
		if ann.ProductName != "" {
			fmt.Fprintf(&b, "product: %s\n", ann.ProductName)
		}
		if ann.ClassificationCode != "" {
			fmt.Fprintf(&b, "classification: %s\n", ann.ClassificationCode)
		}
		fmt.Fprintf(&b, "published: %s\n", ann.PublishedAt.Format("2006-01-02 15:04 MST"))
		if ann.Description != "" {
			fmt.Fprintf(&b, "description: %s\n", truncateRunes(ann.Description, 1500))
		}
	}

	return b.String()
}

// buildCompanyFilterPrompt renders the user message for one company batch.
func buildCompanyFilterPrompt(companies []companyQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Determine public-trading status for the following %d companies:\n", len(companies))

	for i, c := range companies {
		fmt.Fprintf(&b, "\nCompany %d:\n", i+1)
		fmt.Fprintf(&b, "id: %s\n", c.ID)
		fmt.Fprintf(&b, "name: %s\n", c.Name)
		if c.Context != "" {
			fmt.Fprintf(&b, "context: %s\n", truncateRunes(c.Context, 300))
		}
	}

	return b.String()
}
