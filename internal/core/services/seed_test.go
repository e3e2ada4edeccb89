package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/ispasdani/k2ide/internal/adapters/driven/memory"
	"github.com/ispasdani/k2ide/internal/core/domain"
)

// seededProject is one project's active generation in memory stores
type seededProject struct {
	docs     *memory.DocumentStore
	vectors  *memory.VectorStore
	projects *memory.ProjectStore
	ids      []string
}

// seedProject stores one document per vector under a fresh active generation.
// Document i is labeled "file<i>.ts" with content "content <i>".
func seedProject(t *testing.T, projectID string, vectors [][]float32) *seededProject {
	t.Helper()
	ctx := context.Background()

	s := &seededProject{
		docs:     memory.NewDocumentStore(),
		vectors:  memory.NewVectorStore(),
		projects: memory.NewProjectStore(),
	}
	if len(vectors) == 0 {
		return s
	}

	gen, err := s.projects.BeginGeneration(ctx, projectID, testRepo)
	if err != nil {
		t.Fatalf("begin generation: %v", err)
	}

	docs := make([]*domain.Document, 0, len(vectors))
	records := make([]*domain.VectorRecord, 0, len(vectors))
	for i, values := range vectors {
		doc := domain.NewDocument(projectID, gen, testRepo, domain.Chunk{
			SourcePath: fmt.Sprintf("file%d.ts", i),
			Index:      1,
			Total:      1,
			Content:    []byte(fmt.Sprintf("content %d", i)),
		})
		docs = append(docs, doc)
		records = append(records, &domain.VectorRecord{
			DocumentID: doc.ID,
			ProjectID:  projectID,
			Generation: gen,
			Values:     values,
			Seq:        int64(i),
		})
		s.ids = append(s.ids, doc.ID)
	}

	if err := s.docs.SaveBatch(ctx, docs); err != nil {
		t.Fatalf("save docs: %v", err)
	}
	if err := s.vectors.PutBatch(ctx, records); err != nil {
		t.Fatalf("put vectors: %v", err)
	}
	if err := s.projects.Activate(ctx, projectID, gen, len(vectors[0])); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return s
}
