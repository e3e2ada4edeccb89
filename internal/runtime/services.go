package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Services holds the AI services shared by ingestion and answering.
// Either may be absent; callers get domain.ErrServiceUnavailable in that case.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	if config == nil {
		config = domain.NewRuntimeConfig("memory", "memory")
	}
	return &Services{config: config}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// Embedding returns the embedding service or domain.ErrServiceUnavailable
func (s *Services) Embedding() (driven.EmbeddingService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.embeddingService == nil {
		return nil, fmt.Errorf("embedding service not configured: %w", domain.ErrServiceUnavailable)
	}
	return s.embeddingService, nil
}

// LLM returns the generative service or domain.ErrServiceUnavailable
func (s *Services) LLM() (driven.LLMService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.llmService == nil {
		return nil, fmt.Errorf("llm service not configured: %w", domain.ErrServiceUnavailable)
	}
	return s.llmService, nil
}

// SetEmbeddingService replaces the embedding service, closing the old one.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService replaces the generative service, closing the old one.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}
	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// Configure builds both services from settings through factory.
// Unconfigured settings leave the corresponding service absent.
// When validate is true each service must answer a health check first.
func (s *Services) Configure(ctx context.Context, factory driven.AIServiceFactory, emb *domain.EmbeddingSettings, llm *domain.LLMSettings, validate bool) error {
	embSvc, err := factory.CreateEmbeddingService(emb)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	llmSvc, err := factory.CreateLLMService(llm)
	if err != nil {
		if embSvc != nil {
			_ = embSvc.Close()
		}
		return fmt.Errorf("create llm service: %w", err)
	}

	if validate {
		if embSvc != nil {
			if err := embSvc.HealthCheck(ctx); err != nil {
				_ = embSvc.Close()
				if llmSvc != nil {
					_ = llmSvc.Close()
				}
				return fmt.Errorf("embedding health check: %w", err)
			}
		}
		if llmSvc != nil {
			if err := llmSvc.Ping(ctx); err != nil {
				if embSvc != nil {
					_ = embSvc.Close()
				}
				_ = llmSvc.Close()
				return fmt.Errorf("llm ping: %w", err)
			}
		}
	}

	s.SetEmbeddingService(embSvc)
	s.SetLLMService(llmSvc)
	return nil
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)
	return nil
}
