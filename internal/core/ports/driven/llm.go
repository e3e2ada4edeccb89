package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// LLMService composes answers from a prompt.
type LLMService interface {
	// Generate returns the model's text verbatim. A response withheld by
	// the provider's safety filter is an error, not an empty answer.
	Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error)

	Model() string
	Ping(ctx context.Context) error
	Close() error
}
