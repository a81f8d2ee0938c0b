package classifier

import (
	"context"
	"fmt"

	"github.com/ternarybob/regwatch/internal/interfaces"
	"github.com/ternarybob/regwatch/internal/models"
)

// companyQuery is one company sent to the public-company filter.
type companyQuery struct {
	ID      string
	Name    string
	Context string
}

// companyStatus is the resolved public-trading status for one announcement.
type companyStatus struct {
	IsPublic bool
	Ticker   *string
	Exchange *string
}

// conservativeStatus treats an unresolved company as public with no ticker.
// The bias is deliberate: over-inclusion beats silently dropping a
// potentially relevant announcement.
func conservativeStatus() companyStatus {
	return companyStatus{IsPublic: true}
}

// filterCompanies resolves public-trading status for every announcement,
// keyed by source ID. Announcements with no extracted company name bypass
// the filter entirely and resolve as public/unknown.
func (s *Service) filterCompanies(ctx context.Context, announcements []*models.Announcement) (map[string]companyStatus, error) {
	statuses := make(map[string]companyStatus, len(announcements))

	var queries []companyQuery
	for _, ann := range announcements {
		if ann.CompanyName == "" {
			statuses[ann.SourceID] = conservativeStatus()
			continue
		}
		queries = append(queries, companyQuery{
			ID:      ann.SourceID,
			Name:    ann.CompanyName,
			Context: ann.Title,
		})
	}

	for start := 0; start < len(queries); start += s.companyBatchSize {
		end := start + s.companyBatchSize
		if end > len(queries) {
			end = len(queries)
		}
		batch := queries[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("company filter interrupted: %w", err)
		}

		s.resolveCompanyBatch(ctx, batch, statuses)
	}

	return statuses, nil
}

// resolveCompanyBatch calls the model for one company batch and records a
// status for every query. Model failures and schema violations fall back
// conservatively rather than failing the batch.
func (s *Service) resolveCompanyBatch(ctx context.Context, batch []companyQuery, statuses map[string]companyStatus) {
	messages := []interfaces.Message{
		{Role: "system", Content: companyFilterSystemPrompt},
		{Role: "user", Content: buildCompanyFilterPrompt(batch)},
	}

	response, err := s.llm.Chat(ctx, messages)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("batch_size", len(batch)).
			Msg("Company filter call failed, treating batch as public")
		for _, q := range batch {
			statuses[q.ID] = conservativeStatus()
		}
		return
	}

	parsed, err := parseCompanyFilterResponse(response)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("batch_size", len(batch)).
			Msg("Company filter response unparseable, treating batch as public")
		for _, q := range batch {
			statuses[q.ID] = conservativeStatus()
		}
		return
	}

	// Correlation is positional; a short array pads the tail conservatively.
	for i, q := range batch {
		if i >= len(parsed) {
			statuses[q.ID] = conservativeStatus()
			continue
		}
		statuses[q.ID] = companyStatus{
			IsPublic: parsed[i].IsPublic,
			Ticker:   normalizeTicker(parsed[i].Ticker),
			Exchange: normalizeExchange(parsed[i].Exchange),
		}
	}
}
