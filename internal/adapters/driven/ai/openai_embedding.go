package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIEmbedModel = "text-embedding-3-small"
)

var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedding embeds through the OpenAI /embeddings endpoint or any
// compatible server reachable at baseURL. Queries and documents share a model.
type OpenAIEmbedding struct {
	*restClient
	model      string
	dimensions int
}

// NewOpenAIEmbedding creates an OpenAI embedding service. Unknown models
// are assumed to produce 1536-dimensional vectors.
func NewOpenAIEmbedding(apiKey, model, baseURL string) (*OpenAIEmbedding, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if model == "" {
		model = defaultOpenAIEmbedModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	dimensions, ok := openAIModelDimensions[model]
	if !ok {
		dimensions = 1536
	}

	rc := newRESTClient("openai", baseURL, 60*time.Second)
	rc.authorize = func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rc.errorMessage = func(body []byte) string {
		var apiErr openAIEmbedReply
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Error == nil {
			return ""
		}
		return apiErr.Error.Message
	}

	return &OpenAIEmbedding{restClient: rc, model: model, dimensions: dimensions}, nil
}

type openAIEmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type openAIEmbedReply struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per text in input order.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var reply openAIEmbedReply
	req := openAIEmbedRequest{Model: e.model, Input: texts, EncodingFormat: "float"}
	if err := e.post(ctx, "/embeddings", req, &reply); err != nil {
		return nil, err
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("openai API error: %s (%s)", reply.Error.Message, reply.Error.Type)
	}

	// data is not guaranteed to follow input order
	vectors := make([][]float32, len(texts))
	for _, d := range reply.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai returned no embedding for input %d", i)
		}
	}
	return vectors, nil
}

func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedding) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedding) Model() string { return e.model }

// HealthCheck embeds a short probe string.
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

func (e *OpenAIEmbedding) Close() error {
	e.close()
	return nil
}
