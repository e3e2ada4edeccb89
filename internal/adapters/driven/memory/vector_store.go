package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps vector records in process memory, keyed by document ID.
type VectorStore struct {
	mu      sync.RWMutex
	records map[string]*domain.VectorRecord
}

// NewVectorStore creates an empty VectorStore
func NewVectorStore() *VectorStore {
	return &VectorStore{records: make(map[string]*domain.VectorRecord)}
}

func (s *VectorStore) PutBatch(ctx context.Context, records []*domain.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		c := *rec
		c.Values = append([]float32(nil), rec.Values...)
		s.records[rec.DocumentID] = &c
	}
	return nil
}

func (s *VectorStore) ListByProject(ctx context.Context, projectID string, generation int64) ([]*domain.VectorRecord, error) {
	s.mu.RLock()
	out := make([]*domain.VectorRecord, 0)
	for _, rec := range s.records {
		if rec.ProjectID == projectID && rec.Generation == generation {
			c := *rec
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out, nil
}

func (s *VectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	return nil
}

func (s *VectorStore) DeleteGeneration(ctx context.Context, projectID string, generation int64) error {
	return s.deleteWhere(func(r *domain.VectorRecord) bool {
		return r.ProjectID == projectID && r.Generation == generation
	})
}

func (s *VectorStore) PruneGenerations(ctx context.Context, projectID string, keep int64) error {
	return s.deleteWhere(func(r *domain.VectorRecord) bool {
		return r.ProjectID == projectID && r.Generation != keep
	})
}

func (s *VectorStore) DeleteByProject(ctx context.Context, projectID string) error {
	return s.deleteWhere(func(r *domain.VectorRecord) bool {
		return r.ProjectID == projectID
	})
}

func (s *VectorStore) deleteWhere(match func(*domain.VectorRecord) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if match(rec) {
			delete(s.records, id)
		}
	}
	return nil
}
