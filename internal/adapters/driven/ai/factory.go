package ai

import (
	"fmt"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings.
// A positive CacheSize wraps it in the document embedding cache.
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderGemini:
		svc, err = NewGeminiEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewCachedEmbedding(svc, settings.CacheSize), nil
}

// CreateLLMService creates the generative service from settings.
// Only Gemini offers generation.
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderGemini:
		llm, err := NewGeminiLLM(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
