package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// VectorStore persists document embeddings.
// Similarity ranking happens in the retriever, so the store only needs to
// return a generation's vectors in insertion order.
type VectorStore interface {
	// PutBatch stores vector records, replacing any existing record for the same document
	PutBatch(ctx context.Context, records []*domain.VectorRecord) error

	// ListByProject returns all vectors of one generation ordered by Seq
	ListByProject(ctx context.Context, projectID string, generation int64) ([]*domain.VectorRecord, error)

	// DeleteByDocument removes the vector belonging to a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// DeleteGeneration removes every vector of one generation
	DeleteGeneration(ctx context.Context, projectID string, generation int64) error

	// PruneGenerations removes every vector of the project outside the kept generation
	PruneGenerations(ctx context.Context, projectID string, keep int64) error

	// DeleteByProject removes every vector of the project
	DeleteByProject(ctx context.Context, projectID string) error
}
