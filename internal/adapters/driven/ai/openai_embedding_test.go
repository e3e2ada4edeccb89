package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// openAIServer answers /embeddings with one vector per input, in reverse
// order, so index handling is exercised.
func openAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected Authorization header")
		}

		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, datum{Index: i, Embedding: []float32{float32(i), float32(len(req.Input[i]))}})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewOpenAIEmbedding(t *testing.T) {
	if _, err := NewOpenAIEmbedding("", "", ""); err == nil {
		t.Error("expected error for empty API key")
	}

	emb, err := NewOpenAIEmbedding("sk-test", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.Model() != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", emb.Model())
	}
	if emb.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", emb.baseURL)
	}
	if err := emb.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpenAIEmbedding_Dimensions(t *testing.T) {
	tests := []struct {
		model      string
		dimensions int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			emb, err := NewOpenAIEmbedding("sk-test", tt.model, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if emb.Dimensions() != tt.dimensions {
				t.Errorf("expected dimensions %d, got %d", tt.dimensions, emb.Dimensions())
			}
		})
	}
}

func TestOpenAIEmbedding_Embed(t *testing.T) {
	server := openAIServer(t)
	emb, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)

	got, err := emb.Embed(context.Background(), []string{"a", "bbb"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(got))
	}
	if got[0][0] != 0 || got[0][1] != 1 {
		t.Errorf("embedding 0 = %v, want [0 1]", got[0])
	}
	if got[1][0] != 1 || got[1][1] != 3 {
		t.Errorf("embedding 1 = %v, want [1 3]", got[1])
	}
}

func TestOpenAIEmbedding_EmptyInput(t *testing.T) {
	emb, _ := NewOpenAIEmbedding("sk-test", "", "http://127.0.0.1:1")

	got, err := emb.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestOpenAIEmbedding_EmbedQueryAndHealthCheck(t *testing.T) {
	server := openAIServer(t)
	emb, _ := NewOpenAIEmbedding("sk-test", "", server.URL)

	got, err := emb.EmbedQuery(context.Background(), "where is main")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(got) != 2 || got[1] != float32(len("where is main")) {
		t.Errorf("unexpected query embedding %v", got)
	}
	if err := emb.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpenAIEmbedding_MissingIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"index":0,"embedding":[0.1]}]}`))
	}))
	defer server.Close()

	emb, _ := NewOpenAIEmbedding("sk-test", "", server.URL)
	if _, err := emb.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error when an input has no embedding")
	}
}

func TestOpenAIEmbedding_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, domain.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, domain.ErrForbidden},
		{"bad request", http.StatusBadRequest, domain.ErrInvalidInput},
		{"server error", http.StatusInternalServerError, domain.ErrServiceUnavailable},
		{"bad gateway", http.StatusBadGateway, domain.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x","code":"y"}}`))
			}))
			defer server.Close()

			emb, _ := NewOpenAIEmbedding("sk-test", "", server.URL)
			_, err := emb.Embed(context.Background(), []string{"a"})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOpenAIEmbedding_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	emb, _ := NewOpenAIEmbedding("sk-test", "", server.URL)
	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error for invalid JSON response")
	}
}

func TestOpenAIEmbedding_NetworkError(t *testing.T) {
	emb, _ := NewOpenAIEmbedding("sk-test", "", "http://127.0.0.1:1")
	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}
