package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Ensure GeminiEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*GeminiEmbedding)(nil)

const (
	defaultGeminiEmbedModel = "embedding-001"

	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// Output dimensions of the Gemini embedding models
var geminiModelDimensions = map[string]int{
	"embedding-001":        768,
	"text-embedding-004":   768,
	"gemini-embedding-001": 3072,
}

// GeminiEmbedding implements EmbeddingService using the Gemini embedding API.
// Documents and queries are embedded with their respective retrieval task types.
type GeminiEmbedding struct {
	*geminiClient
	model      string
	dimensions int
}

// NewGeminiEmbedding creates a new Gemini embedding service
func NewGeminiEmbedding(apiKey, model, baseURL string) (*GeminiEmbedding, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiEmbedModel
	}

	dimensions, ok := geminiModelDimensions[model]
	if !ok {
		dimensions = 768
	}

	return &GeminiEmbedding{
		geminiClient: newGeminiClient(apiKey, baseURL),
		model:        model,
		dimensions:   dimensions,
	}, nil
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiEmbedding `json:"embeddings"`
}

type geminiEmbedResponse struct {
	Embedding geminiEmbedding `json:"embedding"`
}

func (e *GeminiEmbedding) request(text, taskType string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:    "models/" + e.model,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: taskType,
	}
}

// Embed embeds document texts in one batch call
func (e *GeminiEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body := geminiBatchEmbedRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		body.Requests[i] = e.request(text, taskTypeDocument)
	}

	var resp geminiBatchEmbedResponse
	if err := e.call(ctx, e.model, "batchEmbedContents", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// EmbedQuery embeds a question for retrieval
func (e *GeminiEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	var resp geminiEmbedResponse
	if err := e.call(ctx, e.model, "embedContent", e.request(query, taskTypeQuery), &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, errors.New("no embedding returned for query")
	}
	return resp.Embedding.Values, nil
}

// Dimensions returns the embedding dimension size
func (e *GeminiEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *GeminiEmbedding) Model() string {
	return e.model
}

// HealthCheck embeds a short probe string
func (e *GeminiEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases idle connections
func (e *GeminiEmbedding) Close() error {
	e.close()
	return nil
}
