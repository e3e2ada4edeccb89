package driving

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// IngestionService turns a repository into a project's document set
type IngestionService interface {
	// Ingest runs an ingestion synchronously.
	// A partial result may accompany a non-nil error (for example a rate limit).
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)

	// Enqueue schedules an ingestion for a background worker
	Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.Task, error)

	// TaskStatus returns a queued ingestion task
	TaskStatus(ctx context.Context, taskID string) (*domain.Task, error)
}
