package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Retriever ranks a project's stored vectors against a query vector.
// It performs a linear scan of the active generation.
type Retriever struct {
	vectorStore  driven.VectorStore
	projectStore driven.ProjectStore
	logger       *slog.Logger
}

// NewRetriever creates a new retriever
func NewRetriever(vectorStore driven.VectorStore, projectStore driven.ProjectStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		vectorStore:  vectorStore,
		projectStore: projectStore,
		logger:       logger,
	}
}

// Retrieve returns up to k chunks ordered by descending similarity.
// Equal similarities keep insertion order. A project without vectors yields
// an empty result, not an error. k <= 0 uses domain.DefaultTopK.
//
// A query whose length differs from the project's stored dimension fails
// with domain.ErrDimensionMismatch. Stored vectors of another length are
// excluded from ranking.
func (r *Retriever) Retrieve(ctx context.Context, projectID string, query []float32, k int) ([]domain.RankedChunk, error) {
	if k <= 0 {
		k = domain.DefaultTopK
	}

	state, err := r.projectStore.Get(ctx, projectID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && state.ActiveGeneration == 0) {
		return []domain.RankedChunk{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project state: %w", err)
	}
	if err := checkQueryDimension(state, query); err != nil {
		return nil, err
	}

	records, err := r.vectorStore.ListByProject(ctx, projectID, state.ActiveGeneration)
	if err != nil {
		return nil, fmt.Errorf("list vectors: %w", err)
	}
	if len(records) == 0 {
		// An ingestion may have activated and pruned between the two reads.
		state, records, err = r.relist(ctx, projectID, state)
		if err != nil {
			return nil, err
		}
		if err := checkQueryDimension(state, query); err != nil {
			return nil, err
		}
	}

	dimension := state.Dimension
	if dimension == 0 {
		dimension = len(query)
	}

	ranked := make([]domain.RankedChunk, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if len(rec.Values) != dimension {
			skipped++
			continue
		}
		ranked = append(ranked, domain.RankedChunk{
			DocumentID: rec.DocumentID,
			Similarity: CosineSimilarity(query, rec.Values),
		})
	}
	if skipped > 0 {
		r.logger.Warn("vectors excluded from ranking",
			"project_id", projectID,
			"error", domain.ErrDimensionMismatch,
			"dimension", dimension,
			"excluded", skipped,
		)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// relist re-reads the project state once and lists the newly active
// generation if it moved. The old state is returned when nothing changed.
func (r *Retriever) relist(ctx context.Context, projectID string, prev *domain.ProjectState) (*domain.ProjectState, []*domain.VectorRecord, error) {
	state, err := r.projectStore.Get(ctx, projectID)
	if errors.Is(err, domain.ErrNotFound) {
		return prev, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get project state: %w", err)
	}
	if state.ActiveGeneration == prev.ActiveGeneration || state.ActiveGeneration == 0 {
		return prev, nil, nil
	}

	r.logger.Debug("active generation changed during retrieval",
		"project_id", projectID,
		"from", prev.ActiveGeneration,
		"to", state.ActiveGeneration,
	)
	records, err := r.vectorStore.ListByProject(ctx, projectID, state.ActiveGeneration)
	if err != nil {
		return nil, nil, fmt.Errorf("list vectors: %w", err)
	}
	return state, records, nil
}

func checkQueryDimension(state *domain.ProjectState, query []float32) error {
	if state.Dimension > 0 && len(query) != state.Dimension {
		return fmt.Errorf("query has %d dimensions, project %s stores %d: %w",
			len(query), state.ProjectID, state.Dimension, domain.ErrDimensionMismatch)
	}
	return nil
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|).
// Returns 0 when either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
