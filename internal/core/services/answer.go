package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/ispasdani/k2ide/internal/core/ports/driving"
	"github.com/ispasdani/k2ide/internal/runtime"
)

const defaultGenerateTimeout = 60 * time.Second

// Verify interface compliance
var _ driving.AnswerService = (*AnswerService)(nil)

// AnswerService composes answers from retrieved repository context
type AnswerService struct {
	documentStore driven.DocumentStore
	projectStore  driven.ProjectStore
	retriever     *Retriever
	services      *runtime.Services
	topK          int
	timeout       time.Duration
	logger        *slog.Logger
}

// AnswerServiceConfig holds dependencies for AnswerService.
type AnswerServiceConfig struct {
	DocumentStore driven.DocumentStore
	ProjectStore  driven.ProjectStore
	Retriever     *Retriever
	Services      *runtime.Services
	TopK          int           // default domain.DefaultTopK
	Timeout       time.Duration // per generation call, default 60s
	Logger        *slog.Logger
}

// NewAnswerService creates a new answer service
func NewAnswerService(cfg AnswerServiceConfig) *AnswerService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	return &AnswerService{
		documentStore: cfg.DocumentStore,
		projectStore:  cfg.ProjectStore,
		retriever:     cfg.Retriever,
		services:      cfg.Services,
		topK:          topK,
		timeout:       timeout,
		logger:        logger,
	}
}

// BuildPrompt assembles the generation prompt from context and question.
func BuildPrompt(contextText, question string) string {
	return "Answer the following question based on the provided context from the GitHub repository:\n" +
		" Context: " + contextText + "\n" +
		" Question: " + question + "\n" +
		" Answer concisely and accurately."
}

// Ask answers a question using the project's active documents.
// Any embedding or generation failure aborts the call; no partial answer is returned.
func (s *AnswerService) Ask(ctx context.Context, projectID, question string) (*domain.Answer, error) {
	if projectID == "" || strings.TrimSpace(question) == "" {
		return nil, domain.ErrInvalidInput
	}

	count, err := s.activeDocumentCount(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNotAnalyzed
	}

	embedder, err := s.services.Embedding()
	if err != nil {
		return nil, err
	}
	llm, err := s.services.LLM()
	if err != nil {
		return nil, err
	}

	query, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	ranked, err := s.retriever.Retrieve(ctx, projectID, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	ids := make([]string, len(ranked))
	similarity := make(map[string]float64, len(ranked))
	for i, hit := range ranked {
		ids[i] = hit.DocumentID
		similarity[hit.DocumentID] = hit.Similarity
	}

	var docs []*domain.Document
	if len(ids) > 0 {
		docs, err = s.documentStore.GetMany(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load context documents: %w", err)
		}
	}

	parts := make([]string, 0, len(docs))
	sources := make([]domain.AnswerSource, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
		sources = append(sources, domain.AnswerSource{
			DocumentID: doc.ID,
			Label:      doc.Label,
			Similarity: similarity[doc.ID],
		})
	}
	if len(docs) < len(ids) {
		s.logger.Warn("retrieved documents no longer exist", "project_id", projectID, "missing", len(ids)-len(docs))
	}

	contextText := strings.Join(parts, "\n\n")
	if len(parts) == 0 {
		contextText = domain.NoContextPlaceholder
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := llm.Generate(genCtx, BuildPrompt(contextText, question), domain.DefaultGenerationOptions())
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Info("question answered", "project_id", projectID, "sources", len(sources))

	return &domain.Answer{
		ProjectID: projectID,
		Question:  question,
		Text:      text,
		Sources:   sources,
	}, nil
}

func (s *AnswerService) activeDocumentCount(ctx context.Context, projectID string) (int, error) {
	state, err := s.projectStore.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get project state: %w", err)
	}
	if state.ActiveGeneration == 0 {
		return 0, nil
	}
	return s.documentStore.CountByProject(ctx, projectID, state.ActiveGeneration)
}
