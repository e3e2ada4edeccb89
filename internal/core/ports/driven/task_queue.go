package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// TaskQueue carries asynchronous ingestion requests from the API to workers.
// Backed by Redis Streams, a Postgres table or process memory.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims the next ready task, waiting up to timeout
	// seconds. A claimed task is marked processing and hidden from other
	// workers. It returns nil, nil when nothing became ready in time.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack marks a claimed task completed.
	Ack(ctx context.Context, taskID string) error

	// Nack schedules a retry with backoff, or fails the task once its
	// attempts are used up.
	Nack(ctx context.Context, taskID string, reason string) error

	// Fail marks a task failed without retrying.
	Fail(ctx context.Context, taskID string, reason string) error

	// GetTask returns a snapshot of a task, or domain.ErrNotFound.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Ping(ctx context.Context) error
	Close() error
}
