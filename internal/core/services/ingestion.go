package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ispasdani/k2ide/internal/chunker"
	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/ispasdani/k2ide/internal/core/ports/driving"
	"github.com/ispasdani/k2ide/internal/filter"
	"github.com/ispasdani/k2ide/internal/runtime"
)

// Verify interface compliance
var _ driving.IngestionService = (*IngestionService)(nil)

const (
	defaultConcurrency  = 4
	defaultEmbedTimeout = 30 * time.Second
	defaultLockTTL      = 10 * time.Minute
)

// IngestionService coordinates the ingestion pipeline:
//  1. Acquire the per-project lock
//  2. Return early if the project is already analyzed and no update was asked for
//  3. List and filter repository files
//  4. Stage a fresh generation
//  5. Fetch → chunk → embed (bounded pool) → store, in path order, up to the entry cap
//  6. Activate the generation and prune older ones, or discard it
type IngestionService struct {
	documentStore driven.DocumentStore
	vectorStore   driven.VectorStore
	projectStore  driven.ProjectStore
	source        driven.RepositorySource
	queue         driven.TaskQueue
	lock          driven.DistributedLock
	services      *runtime.Services
	filter        *filter.Filter
	chunker       *chunker.Chunker
	retry         RetryConfig
	concurrency   int
	embedTimeout  time.Duration
	lockTTL       time.Duration
	maxEntries    int
	githubToken   string
	logger        *slog.Logger
}

// IngestionServiceConfig holds dependencies for IngestionService.
type IngestionServiceConfig struct {
	DocumentStore driven.DocumentStore
	VectorStore   driven.VectorStore
	ProjectStore  driven.ProjectStore
	Source        driven.RepositorySource
	Queue         driven.TaskQueue // optional, required for Enqueue
	Lock          driven.DistributedLock
	Services      *runtime.Services
	Filter        *filter.Filter   // nil uses the default rules
	Chunker       *chunker.Chunker // nil uses the default config
	Retry         *RetryConfig     // nil uses DefaultRetryConfig
	Concurrency   int              // embedding calls in flight, default 4
	EmbedTimeout  time.Duration    // per embedding call, default 30s
	LockTTL       time.Duration    // default 10m, extended while the run lasts
	MaxEntries    int              // entry cap for requests that set none, default domain.DefaultMaxEntries
	GitHubToken   string           // used when a request carries no token
	Logger        *slog.Logger
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(cfg IngestionServiceConfig) *IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := cfg.Filter
	if f == nil {
		f = filter.New(filter.DefaultRules())
	}
	c := cfg.Chunker
	if c == nil {
		c = chunker.New(chunker.DefaultConfig())
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedTimeout
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &IngestionService{
		documentStore: cfg.DocumentStore,
		vectorStore:   cfg.VectorStore,
		projectStore:  cfg.ProjectStore,
		source:        cfg.Source,
		queue:         cfg.Queue,
		lock:          cfg.Lock,
		services:      cfg.Services,
		filter:        f,
		chunker:       c,
		retry:         retry,
		concurrency:   concurrency,
		embedTimeout:  embedTimeout,
		lockTTL:       lockTTL,
		maxEntries:    cfg.MaxEntries,
		githubToken:   cfg.GitHubToken,
		logger:        logger,
	}
}

// ingestLockName is the distributed lock guarding a project's ingestion.
func ingestLockName(projectID string) string {
	return "ingest:" + projectID
}

// Ingest runs an ingestion synchronously.
// When the run stops on a provider rate limit the partial result is returned
// together with an error wrapping domain.ErrRateLimited.
func (s *IngestionService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	startTime := time.Now()

	if req.MaxEntries <= 0 {
		req.MaxEntries = s.maxEntries
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lockName := ingestLockName(req.ProjectID)
	acquired, err := s.lock.Acquire(ctx, lockName, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire ingestion lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrIngestionInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			s.logger.Warn("failed to release ingestion lock", "project_id", req.ProjectID, "error", err)
		}
	}()
	stopExtend := s.keepLock(ctx, lockName)
	defer stopExtend()

	s.logger.Info("starting ingestion",
		"project_id", req.ProjectID,
		"repo_url", req.RepoURL,
		"max_entries", req.MaxEntries,
		"update", req.Update,
	)

	result := &domain.IngestResult{ProjectID: req.ProjectID}

	var activeGen int64
	state, err := s.projectStore.Get(ctx, req.ProjectID)
	switch {
	case err == nil:
		activeGen = state.ActiveGeneration
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get project state: %w", err)
	}

	if !req.Update && activeGen > 0 {
		count, err := s.documentStore.CountByProject(ctx, req.ProjectID, activeGen)
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		if count > 0 {
			s.logger.Info("project already analyzed", "project_id", req.ProjectID, "documents", count)
			result.Generation = activeGen
			result.SavedEntries = count
			result.TotalEligible = count
			result.AlreadyAnalyzed = true
			result.DurationSeconds = time.Since(startTime).Seconds()
			return result, nil
		}
	}

	embedder, err := s.services.Embedding()
	if err != nil {
		return nil, err
	}

	token := req.AccessToken
	if token == "" {
		token = s.githubToken
	}

	refs, err := s.source.ListFiles(ctx, req.RepoURL, token)
	if err != nil {
		return nil, fmt.Errorf("list repository files: %w", err)
	}

	reqFilter := s.filter.Merge(req.Filter)
	eligible := make([]domain.FileRef, 0, len(refs))
	for _, ref := range refs {
		if reqFilter.Match(ref.Path) {
			eligible = append(eligible, ref)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Path < eligible[j].Path })
	result.TotalEligible = len(eligible)

	gen, err := s.projectStore.BeginGeneration(ctx, req.ProjectID, req.RepoURL)
	if err != nil {
		return nil, fmt.Errorf("begin generation: %w", err)
	}
	result.Generation = gen

	run := &ingestRun{
		svc:        s,
		req:        req,
		generation: gen,
		token:      token,
		embedder:   embedder,
		results:    make(chan itemResult, s.concurrency),
		pending:    make(map[int64]itemResult),
	}
	runErr := run.execute(ctx, eligible)

	result.SavedEntries = run.saved
	result.FailedPaths = run.failed
	result.SkippedPaths = run.skipped
	result.CapReached = run.capReached
	result.Attempted = run.saved + len(run.failed)

	cleanupCtx := context.WithoutCancel(ctx)

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.discardGeneration(cleanupCtx, req.ProjectID, gen)
		s.logger.Warn("ingestion cancelled", "project_id", req.ProjectID, "generation", gen, "saved", run.saved)
		return nil, ctxErr
	}

	keep := run.saved > 0
	if req.Update && activeGen > 0 && len(eligible) == 0 && runErr == nil {
		// The repository no longer has eligible files; the update empties the project.
		keep = true
	}
	if runErr != nil && req.Update && activeGen > 0 {
		// A complete previous set wins over a partial new one.
		keep = false
	}

	if keep {
		if err := s.projectStore.Activate(cleanupCtx, req.ProjectID, gen, run.dimension); err != nil {
			s.discardGeneration(cleanupCtx, req.ProjectID, gen)
			return nil, fmt.Errorf("activate generation: %w", err)
		}
		s.pruneGenerations(cleanupCtx, req.ProjectID, gen)
	} else {
		s.discardGeneration(cleanupCtx, req.ProjectID, gen)
		result.Generation = activeGen
	}

	result.DurationSeconds = time.Since(startTime).Seconds()

	if runErr != nil {
		s.logger.Warn("ingestion stopped early",
			"project_id", req.ProjectID,
			"saved", result.SavedEntries,
			"activated", keep,
			"error", runErr,
		)
		return result, runErr
	}

	s.logger.Info("ingestion completed",
		"project_id", req.ProjectID,
		"generation", result.Generation,
		"saved", result.SavedEntries,
		"eligible", result.TotalEligible,
		"failed", len(result.FailedPaths),
		"skipped", len(result.SkippedPaths),
		"cap_reached", result.CapReached,
		"duration_seconds", result.DurationSeconds,
	)
	return result, nil
}

// Enqueue schedules an ingestion for a background worker.
// The access token is not queued; workers use the server token.
func (s *IngestionService) Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task queue not configured: %w", domain.ErrServiceUnavailable)
	}
	if req.MaxEntries <= 0 {
		req.MaxEntries = s.maxEntries
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task := domain.NewIngestTask(req)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue ingestion: %w", err)
	}

	s.logger.Info("ingestion queued", "project_id", req.ProjectID, "task_id", task.ID)
	return task, nil
}

// TaskStatus returns a queued ingestion task
func (s *IngestionService) TaskStatus(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task queue not configured: %w", domain.ErrServiceUnavailable)
	}
	if taskID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.queue.GetTask(ctx, taskID)
}

// keepLock extends the lock periodically until the returned func is called.
func (s *IngestionService) keepLock(ctx context.Context, name string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.lock.Extend(ctx, name, s.lockTTL); err != nil {
					s.logger.Warn("failed to extend ingestion lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *IngestionService) discardGeneration(ctx context.Context, projectID string, gen int64) {
	if err := s.vectorStore.DeleteGeneration(ctx, projectID, gen); err != nil {
		s.logger.Warn("failed to discard staged vectors", "project_id", projectID, "generation", gen, "error", err)
	}
	if err := s.documentStore.DeleteGeneration(ctx, projectID, gen); err != nil {
		s.logger.Warn("failed to discard staged documents", "project_id", projectID, "generation", gen, "error", err)
	}
}

func (s *IngestionService) pruneGenerations(ctx context.Context, projectID string, keep int64) {
	if err := s.vectorStore.PruneGenerations(ctx, projectID, keep); err != nil {
		s.logger.Warn("failed to prune old vectors", "project_id", projectID, "generation", keep, "error", err)
	}
	if err := s.documentStore.PruneGenerations(ctx, projectID, keep); err != nil {
		s.logger.Warn("failed to prune old documents", "project_id", projectID, "generation", keep, "error", err)
	}
}

// workItem is one chunk waiting to be embedded. seq orders items across the run.
type workItem struct {
	seq   int64
	chunk domain.Chunk
}

type itemResult struct {
	item   workItem
	values []float32
	err    error
}

// ingestRun holds the state of one ingestion. All fields except results are
// owned by the dispatching goroutine.
type ingestRun struct {
	svc        *IngestionService
	req        domain.IngestRequest
	generation int64
	token      string
	embedder   driven.EmbeddingService

	group   *errgroup.Group
	results chan itemResult

	// Results arrive in completion order and are persisted in seq order.
	pending map[int64]itemResult
	nextSeq int64
	lastSeq int64
	running int

	saved      int
	dimension  int
	failed     []string
	skipped    []string
	capReached bool
	stopErr    error
}

// execute fetches, chunks and dispatches files in order.
// Returns a rate-limit error when the provider stopped the run, or ctx.Err().
func (r *ingestRun) execute(ctx context.Context, files []domain.FileRef) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.svc.concurrency)
	r.group = g

	err := r.dispatch(ctx, gctx, files)
	if err == nil {
		err = r.drain(ctx)
	}
	// Workers never block on send, so Wait returns once in-flight calls end.
	_ = g.Wait()

	if err != nil {
		return err
	}
	return r.stopErr
}

func (r *ingestRun) dispatch(ctx, workerCtx context.Context, files []domain.FileRef) error {
	for _, ref := range files {
		ok, err := r.wait(ctx)
		if err != nil || !ok {
			return err
		}

		file, err := r.svc.source.FetchFile(ctx, r.req.RepoURL, ref, r.token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if domain.Classify(err) == domain.ErrorKindRateLimited {
				r.stopErr = rateLimited(err)
				return nil
			}
			r.svc.logger.Warn("skipping file", "project_id", r.req.ProjectID, "path", ref.Path, "error", err)
			r.skipped = append(r.skipped, ref.Path)
			continue
		}

		for _, chunk := range r.svc.chunker.Split(file.Path, file.Content) {
			ok, err := r.wait(ctx)
			if err != nil || !ok {
				return err
			}
			r.start(workerCtx, workItem{seq: r.lastSeq, chunk: chunk})
			r.lastSeq++
		}
	}
	return nil
}

// wait blocks until another item may be dispatched. It returns false when the
// entry cap is reached or the run was stopped.
func (r *ingestRun) wait(ctx context.Context) (bool, error) {
	for {
		if r.stopErr != nil {
			return false, nil
		}
		outstanding := r.running + len(r.pending)
		if r.saved+outstanding >= r.req.MaxEntries {
			if outstanding == 0 {
				r.capReached = true
				return false, nil
			}
		} else if r.running < r.svc.concurrency {
			return true, nil
		}
		if err := r.receive(ctx); err != nil {
			return false, err
		}
	}
}

func (r *ingestRun) start(ctx context.Context, item workItem) {
	r.running++
	r.group.Go(func() error {
		values, err := r.embed(ctx, item)
		r.results <- itemResult{item: item, values: values, err: err}
		return nil
	})
}

func (r *ingestRun) embed(ctx context.Context, item workItem) ([]float32, error) {
	text := string(item.chunk.Content)
	return retryWithResult(ctx, r.svc.retry, domain.IsTransient, func() ([]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.svc.embedTimeout)
		defer cancel()

		vectors, err := r.embedder.Embed(callCtx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("embedding returned %d vectors: %w", len(vectors), domain.ErrInvalidInput)
		}
		return vectors[0], nil
	})
}

func (r *ingestRun) receive(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-r.results:
		r.running--
		r.pending[res.item.seq] = res
	}

	for {
		res, ok := r.pending[r.nextSeq]
		if !ok {
			return nil
		}
		delete(r.pending, r.nextSeq)
		r.nextSeq++
		r.persist(ctx, res)
	}
}

func (r *ingestRun) drain(ctx context.Context) error {
	for r.running+len(r.pending) > 0 {
		if err := r.receive(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *ingestRun) persist(ctx context.Context, res itemResult) {
	label := res.item.chunk.Label()
	logger := r.svc.logger.With("project_id", r.req.ProjectID, "label", label)

	if res.err != nil {
		r.failed = append(r.failed, label)
		if domain.Classify(res.err) == domain.ErrorKindRateLimited {
			if r.stopErr == nil {
				r.stopErr = rateLimited(res.err)
			}
			logger.Warn("embedding rate limited, stopping dispatch", "error", res.err)
			return
		}
		logger.Warn("embedding failed", "error", res.err)
		return
	}

	if r.dimension == 0 {
		r.dimension = len(res.values)
	} else if len(res.values) != r.dimension {
		r.failed = append(r.failed, label)
		logger.Warn("embedding dimension mismatch",
			"error", domain.ErrDimensionMismatch,
			"expected", r.dimension,
			"got", len(res.values),
		)
		return
	}

	doc := domain.NewDocument(r.req.ProjectID, r.generation, r.req.RepoURL, res.item.chunk)
	if err := r.svc.documentStore.SaveBatch(ctx, []*domain.Document{doc}); err != nil {
		r.failed = append(r.failed, label)
		logger.Error("failed to save document", "error", err)
		return
	}

	record := &domain.VectorRecord{
		DocumentID: doc.ID,
		ProjectID:  r.req.ProjectID,
		Generation: r.generation,
		Values:     res.values,
		Seq:        res.item.seq,
	}
	if err := r.svc.vectorStore.PutBatch(ctx, []*domain.VectorRecord{record}); err != nil {
		r.failed = append(r.failed, label)
		logger.Error("failed to save vector", "error", err)
		if err := r.svc.documentStore.Delete(context.WithoutCancel(ctx), doc.ID); err != nil {
			logger.Error("failed to remove orphaned document", "document_id", doc.ID, "error", err)
		}
		return
	}

	r.saved++
}

// rateLimited makes sure err matches domain.ErrRateLimited.
func rateLimited(err error) error {
	if errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
}
