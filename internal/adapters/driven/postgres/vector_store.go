package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/pgvector/pgvector-go"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore on a pgvector column.
// Ranking happens in the retriever; the store only returns a generation in Seq order.
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new VectorStore
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// PutBatch upserts vector records in a transaction
func (s *VectorStore) PutBatch(ctx context.Context, records []*domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO vectors (document_id, project_id, generation, seq, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id) DO UPDATE SET
				project_id = EXCLUDED.project_id,
				generation = EXCLUDED.generation,
				seq = EXCLUDED.seq,
				embedding = EXCLUDED.embedding
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rec := range records {
			_, err := stmt.ExecContext(ctx,
				rec.DocumentID,
				rec.ProjectID,
				rec.Generation,
				rec.Seq,
				pgvector.NewVector(rec.Values),
			)
			if err != nil {
				return fmt.Errorf("insert vector %s: %w", rec.DocumentID, err)
			}
		}
		return nil
	})
}

// ListByProject returns every vector of one generation ordered by Seq
func (s *VectorStore) ListByProject(ctx context.Context, projectID string, generation int64) ([]*domain.VectorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, project_id, generation, seq, embedding
		FROM vectors
		WHERE project_id = $1 AND generation = $2
		ORDER BY seq, document_id
	`, projectID, generation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*domain.VectorRecord{}
	for rows.Next() {
		var rec domain.VectorRecord
		var embedding pgvector.Vector
		if err := rows.Scan(&rec.DocumentID, &rec.ProjectID, &rec.Generation, &rec.Seq, &embedding); err != nil {
			return nil, err
		}
		rec.Values = embedding.Slice()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByDocument deletes the vector of one document
func (s *VectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE document_id = $1`, documentID)
	return err
}

// DeleteGeneration deletes every vector of one generation
func (s *VectorStore) DeleteGeneration(ctx context.Context, projectID string, generation int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE project_id = $1 AND generation = $2`,
		projectID, generation,
	)
	return err
}

// PruneGenerations deletes every vector outside the kept generation
func (s *VectorStore) PruneGenerations(ctx context.Context, projectID string, keep int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE project_id = $1 AND generation <> $2`,
		projectID, keep,
	)
	return err
}

// DeleteByProject deletes all vectors of a project
func (s *VectorStore) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE project_id = $1`, projectID)
	return err
}
