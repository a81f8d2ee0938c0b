package feeds

import (
	"strings"

	"github.com/ternarybob/regwatch/internal/models"
)

// CategorizeAnnouncement assigns a subtype to an announcement. SEC filings
// categorize by form type; FDA items categorize by keyword.
func CategorizeAnnouncement(title, description, classificationCode string, source models.FeedSource) models.AnnouncementType {
	if source == models.FeedSourceSECEDGAR {
		return categorizeSECFiling(title, description, classificationCode)
	}
	return categorizeFDAItem(title, description, source)
}

func categorizeSECFiling(title, description, formType string) models.AnnouncementType {
	form := strings.ToUpper(strings.TrimSuffix(formType, "/A"))
	text := strings.ToLower(title + " " + description)

	switch form {
	case "8-K", "6-K":
		// 8-K covers any material event; refine by the event described.
		if containsAny(text, "merger", "acquisition", "acquire", "combination", "tender offer") {
			return models.TypeMergerAcquisition
		}
		if containsAny(text, "resignation", "appointment", "departure", "ceo", "cfo", "chief executive", "chief financial", "director") {
			return models.TypeLeadershipChange
		}
		return models.TypeMajorEvent
	case "10-Q":
		return models.TypeQuarterlyReport
	case "10-K", "20-F", "40-F":
		return models.TypeAnnualReport
	case "DEF 14A", "DEFA14A":
		return models.TypeProxyStatement
	case "3", "4", "5":
		return models.TypeInsiderTrading
	case "S-1", "S-3", "S-4":
		return models.TypeStockOffering
	}

	if strings.HasPrefix(form, "424B") {
		return models.TypeStockOffering
	}
	if strings.HasPrefix(form, "SC 13") || form == "13D" || form == "13G" {
		return models.TypeMajorEvent
	}
	return models.TypeOther
}

func categorizeFDAItem(title, description string, source models.FeedSource) models.AnnouncementType {
	text := strings.ToLower(title + " " + description)

	switch {
	case containsAny(text, "recall", "safety alert", "safety communication", "adverse event", "warning letter", "do not use", "contamination", "shortage"):
		return models.TypeSafetyAlert
	case containsAny(text, "drug", "tablet", "capsule", "injection", "biologic", "vaccine", "therapy", "treatment") &&
		containsAny(text, "approv", "authoriz", "clearance", "clears"):
		return models.TypeDrugApproval
	case containsAny(text, "device", "diagnostic", "implant", "510(k)", "de novo", "pma") &&
		containsAny(text, "approv", "authoriz", "clearance", "clears"):
		return models.TypeDeviceApproval
	case containsAny(text, "approv", "authoriz", "clearance"):
		return models.TypeDrugApproval
	case source == models.FeedSourceFDAMedWatch:
		// MedWatch exists to carry safety signals; unmatched items still are.
		return models.TypeSafetyAlert
	case containsAny(text, "guidance", "rule", "regulation", "policy", "docket", "comment period"):
		return models.TypeRegulatory
	}
	return models.TypeRegulatory
}

// DraftPriority assigns a provisional priority before classification runs.
// The classifier replaces this once the entry is processed; until then the
// dashboard shows the draft.
func DraftPriority(title, description string, annType models.AnnouncementType, source models.FeedSource) models.Priority {
	text := strings.ToLower(title + " " + description)

	if containsAny(text, "class i ", "class i recall", "urgent", "immediately", "death", "life-threatening", "serious injury") {
		return models.PriorityHigh
	}
	if containsAny(text, "first", "breakthrough", "accelerated approval", "fast track") {
		return models.PriorityHigh
	}
	if source == models.FeedSourceFDAMedWatch {
		return models.PriorityHigh
	}

	switch annType {
	case models.TypeSafetyAlert, models.TypeMergerAcquisition:
		return models.PriorityHigh
	case models.TypeDrugApproval, models.TypeDeviceApproval, models.TypeMajorEvent, models.TypeLeadershipChange, models.TypeStockOffering:
		return models.PriorityMedium
	}
	return models.PriorityLow
}

func containsAny(text string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
