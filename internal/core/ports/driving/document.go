package driving

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// DocumentService provides access to a project's stored documents
type DocumentService interface {
	// List returns the active generation's documents
	List(ctx context.Context, projectID string, limit, offset int) ([]*domain.Document, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes a document and its vector
	Delete(ctx context.Context, id string) error

	// ProjectSummary reports a project's analysis status
	ProjectSummary(ctx context.Context, projectID string) (*domain.ProjectSummary, error)

	// DeleteProject removes every document, vector and the state of a project
	DeleteProject(ctx context.Context, projectID string) error
}
