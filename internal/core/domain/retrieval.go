package domain

// DefaultTopK is the number of chunks used as answer context
const DefaultTopK = 3

// NoContextPlaceholder is used as context when retrieval returns nothing
const NoContextPlaceholder = "No relevant documents found."

// RankedChunk is a retrieval hit
type RankedChunk struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

// Answer is the composed response to a question
type Answer struct {
	ProjectID string         `json:"project_id"`
	Question  string         `json:"question"`
	Text      string         `json:"answer"`
	Sources   []AnswerSource `json:"sources"`
}

// AnswerSource identifies a document used as context
type AnswerSource struct {
	DocumentID string  `json:"document_id"`
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
}

// Safety categories and thresholds understood by the generative provider
const (
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmBlockMediumAndAbove      = "BLOCK_MEDIUM_AND_ABOVE"
)

// SafetySetting is a content-safety threshold for one category
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerationOptions configures a text generation call
type GenerationOptions struct {
	Temperature    float32         `json:"temperature"`
	SafetySettings []SafetySetting `json:"safety_settings"`
}

// DefaultGenerationOptions returns deterministic decoding with medium-and-above
// blocking for hate speech and dangerous content.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature: 0,
		SafetySettings: []SafetySetting{
			{Category: HarmCategoryHateSpeech, Threshold: HarmBlockMediumAndAbove},
			{Category: HarmCategoryDangerousContent, Threshold: HarmBlockMediumAndAbove},
		},
	}
}
