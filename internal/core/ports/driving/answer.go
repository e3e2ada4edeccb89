package driving

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// AnswerService answers questions about an ingested project
type AnswerService interface {
	// Ask answers a question from the project's active documents.
	// Returns domain.ErrNotAnalyzed if the project has no documents.
	Ask(ctx context.Context, projectID, question string) (*domain.Answer, error)
}
