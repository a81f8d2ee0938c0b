package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/regwatch/internal/models"
)

func TestExtractCompanyName_SECTitle(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"8-K - APPLE INC (0000320193) (Filer)", "Apple Inc"},
		{"10-Q - MERIDIAN THERAPEUTICS INC (0001820450) (Filer)", "Meridian Therapeutics Inc"},
		{"4 - Cook Timothy D (0001214156) (Reporting)", "Cook Timothy D"},
		{"SC 13D/A - HARBORSIDE HOLDINGS LLC (0001992210) (Filed by)", "Harborside Holdings LLC"},
		{"no form structure at all", ""},
	}

	for _, tt := range tests {
		got := ExtractCompanyName(tt.title, "", models.FeedSourceSECEDGAR)
		assert.Equal(t, tt.expected, got, "title: %s", tt.title)
	}
}

func TestExtractCompanyName_FDAProse(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		expected    string
	}{
		{
			name:        "recall announced by company",
			title:       "Meridian Pharmaceuticals Inc. Recalls One Lot of Injectable Solution",
			description: "The recall was initiated after particulate matter was found.",
			expected:    "Meridian Pharmaceuticals Inc.",
		},
		{
			name:        "manufactured by clause",
			title:       "FDA Warns About Contaminated Eye Drops",
			description: "The affected products were manufactured by Clearview Optics Ltd for distribution nationwide.",
			expected:    "Clearview Optics Ltd",
		},
		{
			name:        "no company present",
			title:       "FDA Issues Guidance on Clinical Trial Diversity",
			description: "The draft guidance is open for public comment.",
			expected:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCompanyName(tt.title, tt.description, models.FeedSourceFDAPress)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractProductName(t *testing.T) {
	got := ExtractProductName("FDA Approves Zelmorax (velpatinib) for Advanced Lung Cancer", "")
	assert.Equal(t, "Zelmorax (velpatinib)", got)

	got = ExtractProductName("Company Announces Voluntary Recall of Metoprolol Tablets due to mislabeling", "")
	assert.Equal(t, "Metoprolol Tablets", got)

	got = ExtractProductName("FDA Issues Statement on Inspection Backlog", "")
	assert.Empty(t, got)
}

func TestExtractClassificationCode(t *testing.T) {
	got := ExtractClassificationCode("8-K - ACME CORP (0001234567) (Filer)", "", models.FeedSourceSECEDGAR)
	assert.Equal(t, "8-K", got)

	got = ExtractClassificationCode("DEF 14A - ACME CORP (0001234567) (Filer)", "", models.FeedSourceSECEDGAR)
	assert.Equal(t, "DEF 14A", got)

	got = ExtractClassificationCode("Urgent Recall Notice", "FDA has classified this as a Class I recall.", models.FeedSourceFDAMedWatch)
	assert.Equal(t, "Class I", got)

	got = ExtractClassificationCode("Routine Statement", "No classification applies.", models.FeedSourceFDAPress)
	assert.Empty(t, got)
}
