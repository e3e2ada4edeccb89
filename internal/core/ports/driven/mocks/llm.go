package mocks

import (
	"context"
	"sync"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// MockLLMService records prompts and returns a canned response
type MockLLMService struct {
	mu       sync.Mutex
	prompts  []string
	options  []domain.GenerationOptions
	Response string

	// GenerateFn overrides Generate when set
	GenerateFn func(prompt string, opts domain.GenerationOptions) (string, error)
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{Response: "mock answer"}
}

func (m *MockLLMService) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(prompt, opts)
	}
	return m.Response, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm-model"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Prompts returns every prompt received so far
func (m *MockLLMService) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the options of the most recent call
func (m *MockLLMService) LastOptions() domain.GenerationOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return domain.GenerationOptions{}
	}
	return m.options[len(m.options)-1]
}
