package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/ispasdani/k2ide/internal/core/ports/driven/mocks"
)

func newMock4() *mocks.MockEmbeddingService {
	m := mocks.NewMockEmbeddingService()
	m.SetDimensions(4)
	return m
}

func TestNewCachedEmbedding_Disabled(t *testing.T) {
	inner := newMock4()
	if got := NewCachedEmbedding(inner, 0); got != inner {
		t.Errorf("expected inner service back when size is 0, got %T", got)
	}
}

func TestCachedEmbedding_ServesHitsFromCache(t *testing.T) {
	inner := newMock4()
	var batches [][]string
	inner.EmbedFn = func(texts []string) ([][]float32, error) {
		batches = append(batches, texts)
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text)), 0, 0, 0}
		}
		return out, nil
	}

	svc := NewCachedEmbedding(inner, 8).(*CachedEmbedding)

	first, err := svc.Embed(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := svc.Embed(context.Background(), []string{"bb", "ccc", "a"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(batches))
	}
	if len(batches[1]) != 1 || batches[1][0] != "ccc" {
		t.Errorf("expected only the miss to reach the provider, got %v", batches[1])
	}
	if first[1][0] != 2 || second[0][0] != 2 || second[1][0] != 3 || second[2][0] != 1 {
		t.Errorf("vectors out of order: %v %v", first, second)
	}
	if svc.Len() != 3 {
		t.Errorf("expected 3 cached vectors, got %d", svc.Len())
	}
}

func TestCachedEmbedding_ErrorsAreNotCached(t *testing.T) {
	inner := newMock4()
	fail := true
	inner.EmbedFn = func(texts []string) ([][]float32, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return [][]float32{{1, 0, 0, 0}}, nil
	}

	svc := NewCachedEmbedding(inner, 8).(*CachedEmbedding)
	if _, err := svc.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if svc.Len() != 0 {
		t.Errorf("expected empty cache after failure, got %d", svc.Len())
	}

	fail = false
	if _, err := svc.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if svc.Len() != 1 {
		t.Errorf("expected 1 cached vector, got %d", svc.Len())
	}
}

func TestCachedEmbedding_QueryBypassesCache(t *testing.T) {
	inner := newMock4()
	calls := 0
	inner.EmbedQueryFn = func(query string) ([]float32, error) {
		calls++
		return []float32{1, 0, 0, 0}, nil
	}

	svc := NewCachedEmbedding(inner, 8)
	for i := 0; i < 2; i++ {
		if _, err := svc.EmbedQuery(context.Background(), "q"); err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected every query to reach the provider, got %d calls", calls)
	}
	if svc.Dimensions() != 4 {
		t.Errorf("Dimensions() = %d", svc.Dimensions())
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
