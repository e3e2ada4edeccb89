package domain

import (
	"context"
	"errors"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates access to an upstream resource was denied
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates an upstream provider refused work due to rate limiting
	ErrRateLimited = errors.New("rate limited")

	// ErrNotAnalyzed indicates the project has no ingested documents yet
	ErrNotAnalyzed = errors.New("project not analyzed")

	// ErrDimensionMismatch indicates a vector's dimension disagrees with the project's
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIngestionInProgress indicates another ingestion run holds the project lock
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an AI service could not be reached or is not configured
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ErrorKind is the user-facing classification of a failure.
type ErrorKind string

const (
	ErrorKindRateLimited       ErrorKind = "rate_limited"
	ErrorKindForbidden         ErrorKind = "forbidden"
	ErrorKindNotAnalyzed       ErrorKind = "not_analyzed"
	ErrorKindDimensionMismatch ErrorKind = "dimension_mismatch"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// Classify maps an error to its ErrorKind. Wrapped sentinels win; otherwise
// provider messages are inspected for status codes and well-known markers.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimited
	case errors.Is(err, ErrForbidden):
		return ErrorKindForbidden
	case errors.Is(err, ErrNotAnalyzed):
		return ErrorKindNotAnalyzed
	case errors.Is(err, ErrDimensionMismatch):
		return ErrorKindDimensionMismatch
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota exceeded"),
		strings.Contains(msg, "resource_exhausted"):
		return ErrorKindRateLimited
	case strings.Contains(msg, "403"),
		strings.Contains(msg, "access denied"),
		strings.Contains(msg, "permission_denied"):
		return ErrorKindForbidden
	}
	return ErrorKindUnknown
}

// IsTransient reports whether a failed call is worth retrying.
// Rate limits are never transient: they surface to the caller immediately.
func IsTransient(err error) bool {
	if err == nil || Classify(err) == ErrorKindRateLimited {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrServiceUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection reset", "connection refused", "status 500", "status 502", "status 503", "status 504", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// UserMessage returns guidance suitable for showing to the person who triggered
// the operation.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case ErrorKindRateLimited:
		return "GitHub API rate limit exceeded. Please try again later or provide a GitHub token."
	case ErrorKindForbidden:
		return "Access to the repository was denied. Check that the token has read access."
	case ErrorKindNotAnalyzed:
		return "This project has not been analyzed yet. Ingest the repository first."
	case ErrorKindDimensionMismatch:
		return "Stored embeddings are inconsistent. Re-ingest the repository with update enabled."
	default:
		return "An unexpected error occurred."
	}
}
