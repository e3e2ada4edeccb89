package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProjectStore = (*ProjectStore)(nil)

// ProjectStore keeps generation pointers in process memory.
type ProjectStore struct {
	mu       sync.Mutex
	projects map[string]*domain.ProjectState
}

// NewProjectStore creates an empty ProjectStore
func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]*domain.ProjectState)}
}

func (s *ProjectStore) Get(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.projects[projectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *state
	return &c, nil
}

func (s *ProjectStore) BeginGeneration(ctx context.Context, projectID, repoURL string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.projects[projectID]
	if !ok {
		state = &domain.ProjectState{ProjectID: projectID}
		s.projects[projectID] = state
	}
	state.LatestGeneration++
	state.UpdatedAt = time.Now()
	if state.RepoURL == "" {
		state.RepoURL = repoURL
	}
	return state.LatestGeneration, nil
}

func (s *ProjectStore) Activate(ctx context.Context, projectID string, generation int64, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.projects[projectID]
	if !ok || generation > state.LatestGeneration || generation <= 0 {
		return domain.ErrNotFound
	}
	now := time.Now()
	state.ActiveGeneration = generation
	state.Dimension = dimension
	state.LastIngestAt = &now
	state.UpdatedAt = now
	return nil
}

func (s *ProjectStore) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, projectID)
	return nil
}
