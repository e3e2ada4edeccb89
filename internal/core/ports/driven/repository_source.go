package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// RepositorySource lists and fetches files from a hosted repository.
// token may be empty for public repositories. Failures wrap
// domain.ErrRateLimited, domain.ErrForbidden or domain.ErrNotFound where the
// provider reports them.
type RepositorySource interface {
	// ListFiles returns every file in the repository's default tree
	ListFiles(ctx context.Context, repoURL, token string) ([]domain.FileRef, error)

	// FetchFile downloads one file's content
	FetchFile(ctx context.Context, repoURL string, ref domain.FileRef, token string) (*domain.SourceFile, error)
}
