package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrForbidden", ErrForbidden, "forbidden"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrNotAnalyzed", ErrNotAnalyzed, "project not analyzed"},
		{"ErrDimensionMismatch", ErrDimensionMismatch, "embedding dimension mismatch"},
		{"ErrIngestionInProgress", ErrIngestionInProgress, "ingestion already in progress"},
		{"ErrInvalidProvider", ErrInvalidProvider, "invalid provider"},
		{"ErrServiceUnavailable", ErrServiceUnavailable, "service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"wrapped rate limit", fmt.Errorf("fetch: %w", ErrRateLimited), ErrorKindRateLimited},
		{"wrapped forbidden", fmt.Errorf("fetch: %w", ErrForbidden), ErrorKindForbidden},
		{"not analyzed", ErrNotAnalyzed, ErrorKindNotAnalyzed},
		{"dimension", fmt.Errorf("vector 3: %w", ErrDimensionMismatch), ErrorKindDimensionMismatch},
		{"status 429 text", errors.New("GET /repos: 429 Too Many Requests"), ErrorKindRateLimited},
		{"quota text", errors.New("Quota exceeded for metric"), ErrorKindRateLimited},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), ErrorKindRateLimited},
		{"status 403 text", errors.New("403 Forbidden"), ErrorKindForbidden},
		{"permission denied", errors.New("PERMISSION_DENIED: key invalid"), ErrorKindForbidden},
		{"other", errors.New("boom"), ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", ErrRateLimited, false},
		{"rate limit text with status 503", errors.New("rate limit: status 503"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unavailable", fmt.Errorf("embed: %w", ErrServiceUnavailable), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"status 502", errors.New("upstream returned status 502"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"bad input", ErrInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(ErrorKindRateLimited)
	if msg != "GitHub API rate limit exceeded. Please try again later or provide a GitHub token." {
		t.Errorf("unexpected rate limit message: %q", msg)
	}
	if UserMessage(ErrorKindUnknown) == "" {
		t.Error("expected a fallback message")
	}
}
