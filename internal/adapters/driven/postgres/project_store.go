package postgres

import (
	"context"
	"database/sql"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProjectStore = (*ProjectStore)(nil)

// ProjectStore implements driven.ProjectStore using PostgreSQL.
// The generation counter is advanced with a single upsert so concurrent
// callers never receive the same number.
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new ProjectStore
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Get retrieves a project's state
func (s *ProjectStore) Get(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	var state domain.ProjectState
	var lastIngestAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT project_id, active_generation, latest_generation, dimension, repo_url, last_ingest_at, updated_at
		FROM projects
		WHERE project_id = $1
	`, projectID).Scan(
		&state.ProjectID,
		&state.ActiveGeneration,
		&state.LatestGeneration,
		&state.Dimension,
		&state.RepoURL,
		&lastIngestAt,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	state.LastIngestAt = TimePtr(lastIngestAt)
	return &state, nil
}

// BeginGeneration allocates the next generation number
func (s *ProjectStore) BeginGeneration(ctx context.Context, projectID, repoURL string) (int64, error) {
	var generation int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (project_id, latest_generation, repo_url, updated_at)
		VALUES ($1, 1, $2, NOW())
		ON CONFLICT (project_id) DO UPDATE SET
			latest_generation = projects.latest_generation + 1,
			repo_url = COALESCE(NULLIF(projects.repo_url, ''), EXCLUDED.repo_url),
			updated_at = NOW()
		RETURNING latest_generation
	`, projectID, repoURL).Scan(&generation)
	return generation, err
}

// Activate points readers at a staged generation
func (s *ProjectStore) Activate(ctx context.Context, projectID string, generation int64, dimension int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET active_generation = $2, dimension = $3, last_ingest_at = NOW(), updated_at = NOW()
		WHERE project_id = $1 AND $2 > 0 AND $2 <= latest_generation
	`, projectID, generation, dimension)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a project's state
func (s *ProjectStore) Delete(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE project_id = $1`, projectID)
	return err
}
