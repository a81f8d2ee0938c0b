package interfaces

import (
	"context"
)

// Message represents a single message in a conversation with the
// classification provider.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// LLMService is the contract for classification providers. The provider
// returns free-form text with no structured-output guarantee; callers must
// defensively parse and schema-validate everything.
type LLMService interface {
	// Chat generates a completion for the given conversation history
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the provider is operational
	HealthCheck(ctx context.Context) error

	// Close releases provider resources
	Close() error
}
