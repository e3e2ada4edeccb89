package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// DocumentStore persists document chunks.
// Every query is scoped to a project generation so readers never observe a
// half-written ingestion.
type DocumentStore interface {
	// SaveBatch creates documents. Documents are immutable once saved.
	SaveBatch(ctx context.Context, docs []*domain.Document) error

	// Get retrieves a document by ID. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetMany retrieves the documents that exist among ids, preserving the order of ids.
	// Unknown IDs are skipped.
	GetMany(ctx context.Context, ids []string) ([]*domain.Document, error)

	// ListByProject returns documents of one generation ordered by label
	ListByProject(ctx context.Context, projectID string, generation int64, limit, offset int) ([]*domain.Document, error)

	// CountByProject counts documents of one generation
	CountByProject(ctx context.Context, projectID string, generation int64) (int, error)

	// Delete removes a single document
	Delete(ctx context.Context, id string) error

	// DeleteGeneration removes every document of one generation
	DeleteGeneration(ctx context.Context, projectID string, generation int64) error

	// PruneGenerations removes every document of the project outside the kept generation
	PruneGenerations(ctx context.Context, projectID string, keep int64) error

	// DeleteByProject removes every document of the project
	DeleteByProject(ctx context.Context, projectID string) error
}
