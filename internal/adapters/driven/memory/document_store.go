package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps documents in process memory.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
}

// NewDocumentStore creates an empty DocumentStore
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[string]*domain.Document)}
}

func (s *DocumentStore) SaveBatch(ctx context.Context, docs []*domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.documents[doc.ID] = copyDocument(doc)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *DocumentStore) GetMany(ctx context.Context, ids []string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.documents[id]; ok {
			out = append(out, copyDocument(doc))
		}
	}
	return out, nil
}

func (s *DocumentStore) ListByProject(ctx context.Context, projectID string, generation int64, limit, offset int) ([]*domain.Document, error) {
	s.mu.RLock()
	var matched []*domain.Document
	for _, doc := range s.documents {
		if doc.ProjectID == projectID && doc.Generation == generation {
			matched = append(matched, copyDocument(doc))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Label != matched[j].Label {
			return matched[i].Label < matched[j].Label
		}
		return matched[i].ID < matched[j].ID
	})

	if offset >= len(matched) {
		return []*domain.Document{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *DocumentStore) CountByProject(ctx context.Context, projectID string, generation int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, doc := range s.documents {
		if doc.ProjectID == projectID && doc.Generation == generation {
			count++
		}
	}
	return count, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}

func (s *DocumentStore) DeleteGeneration(ctx context.Context, projectID string, generation int64) error {
	return s.deleteWhere(func(d *domain.Document) bool {
		return d.ProjectID == projectID && d.Generation == generation
	})
}

func (s *DocumentStore) PruneGenerations(ctx context.Context, projectID string, keep int64) error {
	return s.deleteWhere(func(d *domain.Document) bool {
		return d.ProjectID == projectID && d.Generation != keep
	})
}

func (s *DocumentStore) DeleteByProject(ctx context.Context, projectID string) error {
	return s.deleteWhere(func(d *domain.Document) bool {
		return d.ProjectID == projectID
	})
}

func (s *DocumentStore) deleteWhere(match func(*domain.Document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, doc := range s.documents {
		if match(doc) {
			delete(s.documents, id)
		}
	}
	return nil
}

func copyDocument(d *domain.Document) *domain.Document {
	c := *d
	if d.Metadata != nil {
		c.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
