package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/ispasdani/k2ide/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// documentService implements the DocumentService interface
type documentService struct {
	documentStore driven.DocumentStore
	vectorStore   driven.VectorStore
	projectStore  driven.ProjectStore
	lock          driven.DistributedLock
	logger        *slog.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documentStore driven.DocumentStore,
	vectorStore driven.VectorStore,
	projectStore driven.ProjectStore,
	lock driven.DistributedLock,
	logger *slog.Logger,
) driving.DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		documentStore: documentStore,
		vectorStore:   vectorStore,
		projectStore:  projectStore,
		lock:          lock,
		logger:        logger,
	}
}

// List returns the active generation's documents ordered by label
func (s *documentService) List(ctx context.Context, projectID string, limit, offset int) ([]*domain.Document, error) {
	if projectID == "" {
		return nil, domain.ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	state, err := s.projectStore.Get(ctx, projectID)
	if errors.Is(err, domain.ErrNotFound) {
		return []*domain.Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.documentStore.ListByProject(ctx, projectID, state.ActiveGeneration, limit, offset)
}

// Get retrieves a document by ID
func (s *documentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.documentStore.Get(ctx, id)
}

// Delete removes a document and its vector
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.vectorStore.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if err := s.documentStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.logger.Info("document deleted", "project_id", doc.ProjectID, "document_id", id, "label", doc.Label)
	return nil
}

// ProjectSummary reports a project's analysis status
func (s *documentService) ProjectSummary(ctx context.Context, projectID string) (*domain.ProjectSummary, error) {
	if projectID == "" {
		return nil, domain.ErrInvalidInput
	}

	summary := &domain.ProjectSummary{
		ProjectID: projectID,
		Status:    domain.ProjectStatusNotAnalyzed,
	}

	state, err := s.projectStore.Get(ctx, projectID)
	if errors.Is(err, domain.ErrNotFound) {
		return summary, nil
	}
	if err != nil {
		return nil, err
	}

	count := 0
	if state.ActiveGeneration > 0 {
		count, err = s.documentStore.CountByProject(ctx, projectID, state.ActiveGeneration)
		if err != nil {
			return nil, err
		}
	}

	summary.Status = domain.StatusFor(count)
	summary.Generation = state.ActiveGeneration
	summary.DocumentCount = count
	summary.Dimension = state.Dimension
	summary.RepoURL = state.RepoURL
	summary.LastIngestAt = state.LastIngestAt
	return summary, nil
}

// DeleteProject removes every document, vector and the state of a project.
// Refused while an ingestion holds the project lock.
func (s *documentService) DeleteProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return domain.ErrInvalidInput
	}

	lockName := ingestLockName(projectID)
	acquired, err := s.lock.Acquire(ctx, lockName, defaultLockTTL)
	if err != nil {
		return fmt.Errorf("acquire ingestion lock: %w", err)
	}
	if !acquired {
		return domain.ErrIngestionInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			s.logger.Warn("failed to release ingestion lock", "project_id", projectID, "error", err)
		}
	}()

	if err := s.vectorStore.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.documentStore.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if err := s.projectStore.Delete(ctx, projectID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete project state: %w", err)
	}

	s.logger.Info("project deleted", "project_id", projectID)
	return nil
}
