package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// MockRepositorySource serves files from an in-memory map
type MockRepositorySource struct {
	mu      sync.Mutex
	files   map[string][]byte
	fetched []string

	// ListErr is returned by ListFiles when set
	ListErr error

	// FetchErrs maps a path to the error FetchFile returns for it
	FetchErrs map[string]error

	// Tokens records the token passed to each call
	Tokens []string
}

// NewMockRepositorySource creates a source holding files
func NewMockRepositorySource(files map[string]string) *MockRepositorySource {
	m := &MockRepositorySource{
		files:     make(map[string][]byte, len(files)),
		FetchErrs: make(map[string]error),
	}
	for path, content := range files {
		m.files[path] = []byte(content)
	}
	return m
}

// ListFiles returns files in map iteration order
func (m *MockRepositorySource) ListFiles(ctx context.Context, repoURL, token string) ([]domain.FileRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	refs := make([]domain.FileRef, 0, len(m.files))
	for path, content := range m.files {
		refs = append(refs, domain.FileRef{Path: path, Size: len(content)})
	}
	return refs, nil
}

func (m *MockRepositorySource) FetchFile(ctx context.Context, repoURL string, ref domain.FileRef, token string) (*domain.SourceFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	m.fetched = append(m.fetched, ref.Path)

	if err, ok := m.FetchErrs[ref.Path]; ok {
		return nil, err
	}
	content, ok := m.files[ref.Path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.SourceFile{Path: ref.Path, Content: content}, nil
}

// SetFile adds or replaces a file
func (m *MockRepositorySource) SetFile(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

// RemoveFile deletes a file
func (m *MockRepositorySource) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// Fetched returns the sorted set of paths fetched so far
func (m *MockRepositorySource) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.fetched...)
	sort.Strings(out)
	return out
}
