package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/ispasdani/k2ide/internal/core/ports/driving"
)

// Worker processes ingest_project tasks from the task queue.
type Worker struct {
	taskQueue driven.TaskQueue
	ingestion driving.IngestionService
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Ingestion      driving.IngestionService
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		ingestion:      cfg.Ingestion,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. An ingestion in flight runs to completion.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-ctx.Done():
			case <-w.stopCh:
			case <-time.After(time.Second):
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task and settles it on the queue.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "project_id", task.ProjectID, "attempt", task.Attempts)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIngestProject:
		err = w.handleIngestProject(ctx, task, logger)
	default:
		err = fmt.Errorf("unknown task type %s: %w", task.Type, domain.ErrInvalidInput)
	}

	duration := time.Since(startTime)

	// Settle with a context that outlives shutdown so the task is never left in processing
	settleCtx := context.WithoutCancel(ctx)

	if err != nil {
		if isPermanent(err) {
			logger.Error("task failed permanently", "duration", duration, "error", err)
			if failErr := w.taskQueue.Fail(settleCtx, task.ID, err.Error()); failErr != nil {
				logger.Error("failed to fail task", "fail_error", failErr)
			}
			return
		}

		logger.Warn("task failed, will retry", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(settleCtx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)
	if ackErr := w.taskQueue.Ack(settleCtx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleIngestProject runs the ingestion carried by the task.
// Queued tasks never carry a token, so the configured GitHub token applies.
func (w *Worker) handleIngestProject(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	req, err := task.IngestRequest()
	if err != nil {
		return fmt.Errorf("decode ingest task: %w", err)
	}

	result, err := w.ingestion.Ingest(ctx, req)
	if err != nil {
		return err
	}

	logger.Info("ingestion finished",
		"saved_entries", result.SavedEntries,
		"total_files", result.TotalEligible,
		"failed", len(result.FailedPaths),
		"cap_reached", result.CapReached,
		"already_analyzed", result.AlreadyAnalyzed,
	)
	return nil
}

// isPermanent reports errors that no retry can fix.
// A busy project lock is retried like any transient failure.
func isPermanent(err error) bool {
	if errors.Is(err, domain.ErrIngestionInProgress) {
		return false
	}
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrNotFound)
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}
