package mocks

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// It is safe for concurrent use.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   error

	// EmbedFn overrides Embed when set
	EmbedFn func(texts []string) ([][]float32, error)

	// EmbedQueryFn overrides EmbedQuery when set
	EmbedQueryFn func(query string) ([]float32, error)

	embedCalls atomic.Int64
	queryCalls atomic.Int64
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.embedCalls.Add(1)
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if m.EmbedFn != nil {
		return m.EmbedFn(texts)
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.queryCalls.Add(1)
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if m.EmbedQueryFn != nil {
		return m.EmbedQueryFn(query)
	}
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) takeFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.failNext
	m.failNext = nil
	return err
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.Dimensions())
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return embedding
}

// Helper methods for testing

// SetFailNext makes the next Embed or EmbedQuery call return err
func (m *MockEmbeddingService) SetFailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// EmbedCalls returns how many times Embed was called
func (m *MockEmbeddingService) EmbedCalls() int {
	return int(m.embedCalls.Load())
}

// QueryCalls returns how many times EmbedQuery was called
func (m *MockEmbeddingService) QueryCalls() int {
	return int(m.queryCalls.Load())
}
