package driven

import "github.com/ispasdani/k2ide/internal/core/domain"

// AIServiceFactory builds provider clients from settings. Both methods
// return nil, nil for unconfigured settings and wrap
// domain.ErrInvalidProvider for providers they cannot serve.
type AIServiceFactory interface {
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}
