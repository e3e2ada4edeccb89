package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// ProjectStore holds the per-project generation pointer
type ProjectStore interface {
	// Get returns the project state. Returns domain.ErrNotFound if the project was never ingested.
	Get(ctx context.Context, projectID string) (*domain.ProjectState, error)

	// BeginGeneration allocates a fresh generation number for staging an ingestion.
	// Numbers are never reused, even when a staged generation is discarded.
	BeginGeneration(ctx context.Context, projectID, repoURL string) (int64, error)

	// Activate points readers at generation and records its embedding dimension
	Activate(ctx context.Context, projectID string, generation int64, dimension int) error

	// Delete removes the project state
	Delete(ctx context.Context, projectID string) error
}
