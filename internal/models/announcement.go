package models

import (
	"time"
)

// FeedSource identifies the originating regulatory feed
type FeedSource string

const (
	FeedSourceFDAPress    FeedSource = "fda_press"
	FeedSourceFDAMedWatch FeedSource = "fda_medwatch"
	FeedSourceSECEDGAR    FeedSource = "sec_edgar"
)

// DisplayName returns the human-readable feed name
func (s FeedSource) DisplayName() string {
	switch s {
	case FeedSourceFDAPress:
		return "FDA Press Release"
	case FeedSourceFDAMedWatch:
		return "FDA MedWatch"
	case FeedSourceSECEDGAR:
		return "SEC EDGAR"
	default:
		return string(s)
	}
}

// AnnouncementType is the structured filing/announcement subtype assigned by
// keyword categorization during normalization.
type AnnouncementType string

const (
	TypeDrugApproval       AnnouncementType = "drug_approval"
	TypeSafetyAlert        AnnouncementType = "safety_alert"
	TypeDeviceApproval     AnnouncementType = "device_approval"
	TypeRegulatory         AnnouncementType = "regulatory"
	TypeMajorEvent         AnnouncementType = "major_event"
	TypeMergerAcquisition  AnnouncementType = "merger_acquisition"
	TypeLeadershipChange   AnnouncementType = "leadership_change"
	TypeInsiderTrading     AnnouncementType = "insider_trading"
	TypeStockOffering      AnnouncementType = "stock_offering"
	TypeQuarterlyReport    AnnouncementType = "quarterly_report"
	TypeAnnualReport       AnnouncementType = "annual_report"
	TypeProxyStatement     AnnouncementType = "proxy_statement"
	TypeOther              AnnouncementType = "other"
)

// Announcement is the normalized record derived from one feed entry.
// SourceID is the feed-native identifier, stable across re-fetches, and is
// the upsert key: re-ingestion of the same ID updates rather than duplicates.
type Announcement struct {
	SourceID           string            `badgerhold:"key" json:"source_id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Source             FeedSource        `badgerhold:"index" json:"source"`
	Type               AnnouncementType  `badgerhold:"index" json:"type"`
	PublishedAt        time.Time         `json:"published_at"` // Feed publication time, not ingestion time
	CompanyName        string            `json:"company_name,omitempty"`
	ProductName        string            `json:"product_name,omitempty"`
	ClassificationCode string            `json:"classification_code,omitempty"` // e.g. "Class I", "510(k)"
	DraftPriority      Priority          `json:"draft_priority"`                // Heuristic pre-filter only; classifier output is authoritative
	RawPayload         map[string]string `json:"raw_payload,omitempty"`         // Original feed fields for audit/debug
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// FeedSourceRecord is the lazily-created per-feed configuration row.
// Creation goes through an idempotent ensure (find-or-create keyed by name)
// so correctness does not depend on single-process lifetime.
type FeedSourceRecord struct {
	Name          string     `badgerhold:"key" json:"name"`
	URL           string     `json:"url"`
	Source        FeedSource `json:"source"`
	CreatedAt     time.Time  `json:"created_at"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
}
