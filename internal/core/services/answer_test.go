package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven/mocks"
	"github.com/ispasdani/k2ide/internal/runtime"
)

type answerFixture struct {
	svc      *AnswerService
	seed     *seededProject
	embedder *mocks.MockEmbeddingService
	llm      *mocks.MockLLMService
}

func newAnswerFixture(t *testing.T, vectors [][]float32) *answerFixture {
	t.Helper()

	f := &answerFixture{
		seed:     seedProject(t, "p1", vectors),
		embedder: mocks.NewMockEmbeddingService(),
		llm:      mocks.NewMockLLMService(),
	}
	f.embedder.EmbedQueryFn = func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	services := runtime.NewServices(nil)
	services.SetEmbeddingService(f.embedder)
	services.SetLLMService(f.llm)

	f.svc = NewAnswerService(AnswerServiceConfig{
		DocumentStore: f.seed.docs,
		ProjectStore:  f.seed.projects,
		Retriever:     NewRetriever(f.seed.vectors, f.seed.projects, nil),
		Services:      services,
	})
	return f
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("ctx", "What does it do?")
	want := "Answer the following question based on the provided context from the GitHub repository:\n" +
		" Context: ctx\n" +
		" Question: What does it do?\n" +
		" Answer concisely and accurately."
	if got != want {
		t.Errorf("BuildPrompt() = %q, want %q", got, want)
	}
}

func TestAsk_UsesTopChunksAsContext(t *testing.T) {
	f := newAnswerFixture(t, [][]float32{
		{0, 1},   // content 0, orthogonal
		{1, 0},   // content 1, exact
		{1, 1},   // content 2
		{1, 0.1}, // content 3
	})

	answer, err := f.svc.Ask(context.Background(), "p1", "How are orders stored?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Text != "mock answer" {
		t.Errorf("unexpected answer %q", answer.Text)
	}
	if len(answer.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(answer.Sources))
	}
	if answer.Sources[0].Label != "file1.ts" || answer.Sources[0].Similarity < 0.999 {
		t.Errorf("unexpected top source %+v", answer.Sources[0])
	}

	prompts := f.llm.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(prompts))
	}
	wantContext := "content 1\n\ncontent 3\n\ncontent 2"
	if prompts[0] != BuildPrompt(wantContext, "How are orders stored?") {
		t.Errorf("unexpected prompt %q", prompts[0])
	}

	opts := f.llm.LastOptions()
	if opts.Temperature != 0 || len(opts.SafetySettings) != 2 {
		t.Errorf("unexpected generation options %+v", opts)
	}
}

func TestAsk_NotAnalyzedMakesNoProviderCalls(t *testing.T) {
	f := newAnswerFixture(t, nil)

	_, err := f.svc.Ask(context.Background(), "p1", "anything?")
	if !errors.Is(err, domain.ErrNotAnalyzed) {
		t.Fatalf("expected ErrNotAnalyzed, got %v", err)
	}
	if f.embedder.QueryCalls() != 0 {
		t.Error("expected no embedding calls")
	}
	if len(f.llm.Prompts()) != 0 {
		t.Error("expected no generation calls")
	}
}

func TestAsk_InvalidInput(t *testing.T) {
	f := newAnswerFixture(t, [][]float32{{1, 0}})

	for _, tc := range []struct{ project, question string }{
		{"", "question"},
		{"p1", ""},
		{"p1", "   "},
	} {
		if _, err := f.svc.Ask(context.Background(), tc.project, tc.question); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Ask(%q, %q) expected ErrInvalidInput, got %v", tc.project, tc.question, err)
		}
	}
}

func TestAsk_PlaceholderWhenNothingRetrieved(t *testing.T) {
	f := newAnswerFixture(t, [][]float32{{1, 0}})

	// Documents remain but no vectors rank.
	if err := f.seed.vectors.DeleteByProject(context.Background(), "p1"); err != nil {
		t.Fatalf("delete vectors: %v", err)
	}

	answer, err := f.svc.Ask(context.Background(), "p1", "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(answer.Sources))
	}
	prompt := f.llm.Prompts()[0]
	if !strings.Contains(prompt, " Context: "+domain.NoContextPlaceholder+"\n") {
		t.Errorf("expected placeholder context, got %q", prompt)
	}
}

func TestAsk_QueryDimensionMismatch(t *testing.T) {
	f := newAnswerFixture(t, [][]float32{{1, 0}, {0, 1}})
	f.embedder.EmbedQueryFn = func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	answer, err := f.svc.Ask(context.Background(), "p1", "question")
	if !errors.Is(err, domain.ErrDimensionMismatch) || answer != nil {
		t.Fatalf("expected ErrDimensionMismatch with no answer, got %v, %v", answer, err)
	}
	if domain.Classify(err) != domain.ErrorKindDimensionMismatch {
		t.Errorf("unexpected error kind %v", domain.Classify(err))
	}
	if len(f.llm.Prompts()) != 0 {
		t.Error("expected no generation after a dimension mismatch")
	}
}

func TestAsk_SkipsDocumentsDeletedAfterRanking(t *testing.T) {
	f := newAnswerFixture(t, [][]float32{{1, 0}, {1, 0.5}})

	// Remove the document but keep its vector.
	if err := f.seed.docs.Delete(context.Background(), f.seed.ids[0]); err != nil {
		t.Fatalf("delete doc: %v", err)
	}

	answer, err := f.svc.Ask(context.Background(), "p1", "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Label != "file1.ts" {
		t.Errorf("unexpected sources %+v", answer.Sources)
	}
}

func TestAsk_ProviderErrorsAbort(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		f := newAnswerFixture(t, [][]float32{{1, 0}})
		f.embedder.SetFailNext(domain.ErrRateLimited)

		answer, err := f.svc.Ask(context.Background(), "p1", "question")
		if !errors.Is(err, domain.ErrRateLimited) || answer != nil {
			t.Errorf("expected ErrRateLimited with no answer, got %v, %v", answer, err)
		}
		if len(f.llm.Prompts()) != 0 {
			t.Error("expected no generation after embedding failure")
		}
	})

	t.Run("generation", func(t *testing.T) {
		f := newAnswerFixture(t, [][]float32{{1, 0}})
		f.llm.GenerateFn = func(string, domain.GenerationOptions) (string, error) {
			return "", domain.ErrForbidden
		}

		answer, err := f.svc.Ask(context.Background(), "p1", "question")
		if !errors.Is(err, domain.ErrForbidden) || answer != nil {
			t.Errorf("expected ErrForbidden with no answer, got %v, %v", answer, err)
		}
	})
}

func TestAsk_ServicesUnavailable(t *testing.T) {
	f := newAnswerFixture(t, [][]float32{{1, 0}})
	f.svc.services = runtime.NewServices(nil)

	if _, err := f.svc.Ask(context.Background(), "p1", "question"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}
