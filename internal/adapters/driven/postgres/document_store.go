package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/lib/pq"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const documentColumns = `id, project_id, generation, label, source_path, chunk_index, total_chunks, content, metadata, created_at`

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// SaveBatch inserts documents in a transaction
func (s *DocumentStore) SaveBatch(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (`+documentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, doc := range docs {
			args, err := documentArgs(doc)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert document %s: %w", doc.Label, err)
			}
		}
		return nil
	})
}

// documentArgs lists insert arguments in documentColumns order. Content is
// bound as bytes so byte-exact chunks that split a character survive the
// bytea column unchanged.
func documentArgs(doc *domain.Document) ([]any, error) {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		doc.ID,
		doc.ProjectID,
		doc.Generation,
		doc.Label,
		doc.SourcePath,
		doc.ChunkIndex,
		doc.TotalChunks,
		[]byte(doc.Content),
		metadataJSON,
		doc.CreatedAt,
	}, nil
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// GetMany retrieves existing documents in the order of ids
func (s *DocumentStore) GetMany(ctx context.Context, ids []string) ([]*domain.Document, error) {
	if len(ids) == 0 {
		return []*domain.Document{}, nil
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

// ListByProject returns a page of one generation's documents ordered by label
func (s *DocumentStore) ListByProject(ctx context.Context, projectID string, generation int64, limit, offset int) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE project_id = $1 AND generation = $2
		ORDER BY label, id
		LIMIT $3 OFFSET $4
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, generation, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// CountByProject counts one generation's documents
func (s *DocumentStore) CountByProject(ctx context.Context, projectID string, generation int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE project_id = $1 AND generation = $2`,
		projectID, generation,
	).Scan(&count)
	return count, err
}

// Delete deletes a document
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteGeneration deletes every document of one generation
func (s *DocumentStore) DeleteGeneration(ctx context.Context, projectID string, generation int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE project_id = $1 AND generation = $2`,
		projectID, generation,
	)
	return err
}

// PruneGenerations deletes every document outside the kept generation
func (s *DocumentStore) PruneGenerations(ctx context.Context, projectID string, keep int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE project_id = $1 AND generation <> $2`,
		projectID, keep,
	)
	return err
}

// DeleteByProject deletes all documents of a project
func (s *DocumentStore) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE project_id = $1`, projectID)
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var content, metadataJSON []byte

	err := row.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.Generation,
		&doc.Label,
		&doc.SourcePath,
		&doc.ChunkIndex,
		&doc.TotalChunks,
		&content,
		&metadataJSON,
		&doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Content = string(content)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*domain.Document, error) {
	docs := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// orderByIDs arranges docs in the order of ids, dropping ids with no document
func orderByIDs(docs []*domain.Document, ids []string) []*domain.Document {
	byID := make(map[string]*domain.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	ordered := make([]*domain.Document, 0, len(docs))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc)
			delete(byID, id)
		}
	}
	return ordered
}
