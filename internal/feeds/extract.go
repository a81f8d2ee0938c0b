package feeds

import (
	"regexp"
	"strings"

	"github.com/ternarybob/regwatch/internal/models"
)

var (
	// secTitlePattern matches EDGAR Atom titles of the form
	// "8-K - APPLE INC (0000320193) (Filer)".
	secTitlePattern = regexp.MustCompile(`^([A-Z0-9][A-Z0-9/ \-]*?)\s+-\s+(.+?)\s+\((\d{7,10})\)`)

	// fdaCompanyPatterns capture the issuing company from FDA prose. Ordered
	// by specificity; the first match wins.
	fdaCompanyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:issued by|manufactured by|marketed by|made by|produced by|distributed by)\s+([A-Z][A-Za-z0-9&.,' -]+?)(?:\s+(?:for|to|after|due|because|following|announced)\b|[.;]|$)`),
		regexp.MustCompile(`([A-Z][A-Za-z0-9&.' -]+?(?:Inc|Corp|Corporation|Company|Co|Ltd|LLC|Pharmaceuticals|Pharma|Therapeutics|Biosciences|Laboratories|Labs)\.?)(?:\s+(?:Recalls|Announces|Issues|Expands|Initiates|Voluntarily)\b)`),
		regexp.MustCompile(`(?i)(?:from|by)\s+([A-Z][A-Za-z0-9&.' -]+?(?:Inc|Corp|Corporation|Company|Co|Ltd|LLC|Pharmaceuticals|Pharma|Therapeutics|Biosciences|Laboratories|Labs)\.?)(?:[.,;]|\s|$)`),
	}

	// productPatterns capture drug or device names from FDA titles.
	productPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:approves|approval of|clears|authorizes|grants?\s+(?:accelerated\s+)?approval\s+(?:to|for))\s+([A-Z][A-Za-z0-9-]+(?:\s+\([a-z][a-z0-9 -]+\))?)`),
		regexp.MustCompile(`(?i)recall of\s+([A-Z][A-Za-z0-9 -]{2,40}?)(?:\s+(?:due|after|because|following)\b|[.,;]|$)`),
	}

	// recallClassPattern matches FDA recall classifications.
	recallClassPattern = regexp.MustCompile(`(?i)\bclass\s+(I{1,3})\b`)

	// secFormPattern matches common EDGAR form types at a word boundary.
	secFormPattern = regexp.MustCompile(`\b(8-K(?:/A)?|10-K(?:/A)?|10-Q(?:/A)?|S-1(?:/A)?|S-3(?:/A)?|S-4(?:/A)?|DEF 14A|DEFA14A|13D(?:/A)?|13G(?:/A)?|SC 13D(?:/A)?|SC 13G(?:/A)?|424B\d|6-K|20-F|40-F|[345](?:/A)?)\b`)
)

// ExtractCompanyName pulls the company behind an announcement. SEC titles
// carry the filer name in a fixed position; FDA prose needs pattern
// matching. Returns the empty string when no company is identifiable.
func ExtractCompanyName(title, description string, source models.FeedSource) string {
	if source == models.FeedSourceSECEDGAR {
		if m := secTitlePattern.FindStringSubmatch(title); m != nil {
			return normalizeCompanyName(m[2])
		}
		return ""
	}

	text := title + ". " + description
	for _, p := range fdaCompanyPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return normalizeCompanyName(m[1])
		}
	}
	return ""
}

// ExtractProductName pulls a drug or device name from FDA prose.
func ExtractProductName(title, description string) string {
	text := title + ". " + description
	for _, p := range productPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// ExtractClassificationCode pulls the regulatory classification for an
// announcement. For SEC this is the form type (8-K, 10-K); for FDA the
// recall class when one is stated (Class I, Class II, Class III).
func ExtractClassificationCode(title, description string, source models.FeedSource) string {
	if source == models.FeedSourceSECEDGAR {
		if m := secTitlePattern.FindStringSubmatch(title); m != nil {
			return m[1]
		}
		if m := secFormPattern.FindStringSubmatch(title); m != nil {
			return m[1]
		}
		return ""
	}

	text := title + " " + description
	if m := recallClassPattern.FindStringSubmatch(text); m != nil {
		return "Class " + strings.ToUpper(m[1])
	}
	return ""
}

// normalizeCompanyName trims filing-style decoration from a company name.
func normalizeCompanyName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ",")
	name = strings.TrimSuffix(name, ".")

	// EDGAR filer names arrive fully upper-cased; title-case them for
	// display while keeping short corporate suffixes intact.
	if name == strings.ToUpper(name) && len(name) > 4 {
		name = titleCaseCompany(name)
	}
	return name
}

var companyUpperTokens = map[string]bool{
	"LLC": true, "LP": true, "PLC": true, "NV": true, "SA": true,
	"AG": true, "SE": true, "USA": true, "II": true, "III": true,
}

func titleCaseCompany(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if companyUpperTokens[w] {
			continue
		}
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}
