package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RepositorySource = (*Source)(nil)

const defaultTimeout = 30 * time.Second

// Config holds GitHub source settings
type Config struct {
	// BaseURL overrides the API endpoint (GitHub Enterprise or tests).
	BaseURL string

	// Ref is the branch, tag or commit to read. Empty means the repository's default branch.
	Ref string

	// RequestsPerSecond throttles API calls. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int

	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns settings sized for the authenticated 5000 req/h quota
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             10,
		Timeout:           defaultTimeout,
	}
}

// Source reads repository trees and blobs through the GitHub REST API.
// Each call builds a client for the caller's token; the token is never stored.
type Source struct {
	baseURL *url.URL
	ref     string
	timeout time.Duration
	limiter *rateLimiter
	logger  *slog.Logger
}

// NewSource creates a GitHub repository source
func NewSource(cfg Config) (*Source, error) {
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		base = u
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		baseURL: base,
		ref:     cfg.Ref,
		timeout: cfg.Timeout,
		limiter: newRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  logger,
	}, nil
}

func (s *Source) client(ctx context.Context, token string) *gh.Client {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = s.timeout

	c := gh.NewClient(hc)
	if s.baseURL != nil {
		c.BaseURL = s.baseURL
	}
	return c
}

// ListFiles returns every blob in the recursive tree of the configured ref
func (s *Source) ListFiles(ctx context.Context, repoURL, token string) ([]domain.FileRef, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	c := s.client(ctx, token)

	ref := s.ref
	if ref == "" {
		if ref, err = s.defaultBranch(ctx, c, owner, repo); err != nil {
			return nil, err
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tree, resp, err := c.Git.GetTree(ctx, owner, repo, ref, true)
	s.observe(resp)
	if err != nil {
		return nil, wrapError(err, "get tree")
	}
	if tree.GetTruncated() {
		s.logger.Warn("github tree truncated, listing is incomplete",
			"repo", owner+"/"+repo, "ref", ref, "entries", len(tree.Entries))
	}

	refs := make([]domain.FileRef, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		refs = append(refs, domain.FileRef{
			Path: entry.GetPath(),
			SHA:  entry.GetSHA(),
			Size: entry.GetSize(),
		})
	}
	return refs, nil
}

// FetchFile downloads a blob by SHA, or by path on the configured ref when the SHA is unknown
func (s *Source) FetchFile(ctx context.Context, repoURL string, ref domain.FileRef, token string) (*domain.SourceFile, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	c := s.client(ctx, token)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if ref.SHA == "" {
		opts := &gh.RepositoryContentGetOptions{Ref: s.ref}
		file, _, resp, err := c.Repositories.GetContents(ctx, owner, repo, ref.Path, opts)
		s.observe(resp)
		if err != nil {
			return nil, wrapError(err, "get contents "+ref.Path)
		}
		if file == nil {
			return nil, fmt.Errorf("%s is a directory: %w", ref.Path, domain.ErrInvalidInput)
		}
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ref.Path, err)
		}
		return &domain.SourceFile{Path: ref.Path, Content: []byte(content)}, nil
	}

	blob, resp, err := c.Git.GetBlob(ctx, owner, repo, ref.SHA)
	s.observe(resp)
	if err != nil {
		return nil, wrapError(err, "get blob "+ref.Path)
	}
	content, err := decodeBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref.Path, err)
	}
	return &domain.SourceFile{Path: ref.Path, Content: content}, nil
}

func (s *Source) defaultBranch(ctx context.Context, c *gh.Client, owner, repo string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	r, resp, err := c.Repositories.Get(ctx, owner, repo)
	s.observe(resp)
	if err != nil {
		return "", wrapError(err, "get repository")
	}
	if branch := r.GetDefaultBranch(); branch != "" {
		return branch, nil
	}
	return "main", nil
}

func (s *Source) observe(resp *gh.Response) {
	if resp != nil {
		s.limiter.Observe(resp.Response)
	}
}

func decodeBlob(blob *gh.Blob) ([]byte, error) {
	switch blob.GetEncoding() {
	case "base64":
		// GitHub wraps base64 content at 60 columns
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.GetContent(), "\n", ""))
	case "", "utf-8":
		return []byte(blob.GetContent()), nil
	default:
		return nil, fmt.Errorf("unsupported blob encoding %q", blob.GetEncoding())
	}
}

// ParseRepoURL extracts owner and repository name from
// https://github.com/owner/repo(.git), github.com/owner/repo or owner/repo.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	s := strings.TrimSpace(repoURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[0], ".") {
		return "", "", fmt.Errorf("not a github repository url %q: %w", repoURL, domain.ErrInvalidInput)
	}
	return parts[0], parts[1], nil
}

// wrapError maps go-github failures onto domain sentinels
func wrapError(err error, op string) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: %s: %w", op, rateErr.Message, domain.ErrRateLimited)
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %s: %w", op, abuseErr.Message, domain.ErrRateLimited)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch status := respErr.Response.StatusCode; {
		case status == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %s: %w", op, respErr.Message, domain.ErrRateLimited)
		case status == http.StatusUnauthorized:
			return fmt.Errorf("%s: %s: %w", op, respErr.Message, domain.ErrUnauthorized)
		case status == http.StatusForbidden:
			return fmt.Errorf("%s: %s: %w", op, respErr.Message, domain.ErrForbidden)
		case status == http.StatusNotFound:
			return fmt.Errorf("%s: %s: %w", op, respErr.Message, domain.ErrNotFound)
		case status >= 500:
			return fmt.Errorf("%s: %s: %w", op, respErr.Message, domain.ErrServiceUnavailable)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
