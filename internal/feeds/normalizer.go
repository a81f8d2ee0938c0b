package feeds

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/ternarybob/regwatch/internal/models"
)

// placeholderTitles supplies a readable title when a feed item carries none.
var placeholderTitles = map[models.FeedSource]string{
	models.FeedSourceFDAPress:    "FDA Announcement",
	models.FeedSourceFDAMedWatch: "FDA Safety Alert",
	models.FeedSourceSECEDGAR:    "SEC Filing",
}

// Normalizer converts raw feed documents into announcements. It handles
// both RSS 2.0 (FDA) and Atom (SEC EDGAR) documents via a universal parser.
type Normalizer struct {
	parser *gofeed.Parser
}

// NewNormalizer creates a feed normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		parser: gofeed.NewParser(),
	}
}

// Normalize parses a feed document and converts each item into an
// announcement. Items with no usable identity (no GUID and no link) are
// skipped rather than failing the whole document.
func (n *Normalizer) Normalize(feed Feed, body []byte) ([]models.Announcement, error) {
	parsed, err := n.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feed.Name, err)
	}

	now := time.Now().UTC()
	announcements := make([]models.Announcement, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		sourceID := itemSourceID(item)
		if sourceID == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = placeholderTitles[feed.Source]
		}

		description := SanitizeDescription(item.Description)
		if description == "" {
			description = SanitizeDescription(item.Content)
		}

		ann := models.Announcement{
			SourceID:    sourceID,
			Title:       title,
			Description: description,
			Source:      feed.Source,
			PublishedAt: itemPublishedAt(item, now),
			RawPayload:  itemRawPayload(item),
		}

		ann.CompanyName = ExtractCompanyName(ann.Title, ann.Description, feed.Source)
		ann.ProductName = ExtractProductName(ann.Title, ann.Description)
		ann.ClassificationCode = ExtractClassificationCode(ann.Title, ann.Description, feed.Source)
		ann.Type = CategorizeAnnouncement(ann.Title, ann.Description, ann.ClassificationCode, feed.Source)
		ann.DraftPriority = DraftPriority(ann.Title, ann.Description, ann.Type, feed.Source)

		announcements = append(announcements, ann)
	}

	return announcements, nil
}

// itemSourceID derives the stable identity of a feed item. GUID wins when
// present; the item link is the fallback. SEC Atom entries carry their
// accession URL in the id element, which gofeed maps to GUID.
func itemSourceID(item *gofeed.Item) string {
	if id := strings.TrimSpace(item.GUID); id != "" {
		return id
	}
	return strings.TrimSpace(item.Link)
}

// itemPublishedAt picks the item timestamp. RSS populates pubDate and Atom
// populates updated; gofeed exposes both through the same fields.
func itemPublishedAt(item *gofeed.Item, fallback time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return fallback
}

// itemRawPayload preserves the original item fields for later inspection.
func itemRawPayload(item *gofeed.Item) map[string]string {
	payload := map[string]string{
		"title": item.Title,
		"link":  item.Link,
	}
	if item.GUID != "" {
		payload["guid"] = item.GUID
	}
	if item.Published != "" {
		payload["published"] = item.Published
	}
	if item.Updated != "" {
		payload["updated"] = item.Updated
	}
	if len(item.Categories) > 0 {
		payload["categories"] = strings.Join(item.Categories, ",")
	}
	return payload
}

// SanitizeDescription strips HTML markup from a feed description and
// collapses whitespace. FDA descriptions routinely embed anchor tags and
// tracking markup.
func SanitizeDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "<") {
		return collapseWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseWhitespace(raw)
	}

	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
