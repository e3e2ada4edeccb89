package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Ensure GeminiLLM implements LLMService
var _ driven.LLMService = (*GeminiLLM)(nil)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiLLM implements LLMService with the Gemini generateContent endpoint
type GeminiLLM struct {
	*geminiClient
	model string
}

// NewGeminiLLM creates a new Gemini generation service
func NewGeminiLLM(apiKey, model, baseURL string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiLLM{
		geminiClient: newGeminiClient(apiKey, baseURL),
		model:        model,
	}, nil
}

type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []domain.SafetySetting `json:"safetySettings,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature float32 `json:"temperature"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Generate returns the first candidate's text.
// A prompt blocked by the safety settings is reported as ErrInvalidInput.
func (l *GeminiLLM) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	body := geminiGenerateRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: opts.Temperature},
		SafetySettings:   opts.SafetySettings,
	}

	var resp geminiGenerateResponse
	if err := l.call(ctx, l.model, "generateContent", body, &resp); err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, domain.ErrInvalidInput)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == "SAFETY" && len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("answer blocked by safety settings: %w", domain.ErrInvalidInput)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// Model returns the model name being used
func (l *GeminiLLM) Model() string {
	return l.model
}

// Ping sends a one-word prompt
func (l *GeminiLLM) Ping(ctx context.Context) error {
	_, err := l.Generate(ctx, "ping", domain.GenerationOptions{})
	return err
}

// Close releases idle connections
func (l *GeminiLLM) Close() error {
	l.close()
	return nil
}
