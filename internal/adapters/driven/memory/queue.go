package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*TaskQueue)(nil)

// TaskQueue is a single-process task queue. Tasks are lost on restart.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  map[string]*domain.Task
	notify chan struct{}
	closed bool

	// pollInterval bounds how long a waiting dequeue sleeps before
	// re-checking tasks whose retry delay has elapsed.
	pollInterval time.Duration
}

// NewTaskQueue creates an empty TaskQueue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:        make(map[string]*domain.Task),
		notify:       make(chan struct{}, 1),
		pollInterval: 500 * time.Millisecond,
	}
}

func (q *TaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrServiceUnavailable
	}
	c := *task
	q.tasks[task.ID] = &c

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// DequeueWithTimeout waits up to timeout seconds for a ready task.
func (q *TaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.NewTimer(time.Duration(timeout) * time.Second)
	defer deadline.Stop()

	for {
		if task := q.next(); task != nil {
			return task, nil
		}

		poll := time.NewTimer(q.pollInterval)
		select {
		case <-ctx.Done():
			poll.Stop()
			return nil, ctx.Err()
		case <-deadline.C:
			poll.Stop()
			return nil, nil
		case <-q.notify:
			poll.Stop()
		case <-poll.C:
		}
	}
}

// next claims the oldest ready task, or returns nil.
func (q *TaskQueue) next() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*domain.Task
	for _, t := range q.tasks {
		if t.IsReady() {
			ready = append(ready, t)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].ScheduledFor.Before(ready[j].ScheduledFor)
	})

	task := ready[0]
	task.MarkProcessing()
	c := *task
	return &c
}

func (q *TaskQueue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return nil
}

func (q *TaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return nil
}

func (q *TaskQueue) Fail(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkFailed(reason)
	return nil
}

func (q *TaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *task
	return &c, nil
}

func (q *TaskQueue) Ping(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrServiceUnavailable
	}
	return nil
}

func (q *TaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
