package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderGemini AIProvider = "gemini"
	AIProviderOpenAI AIProvider = "openai"
)

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider  AIProvider `json:"provider"`
	Model     string     `json:"model"`
	APIKey    string     `json:"-"` // Never serialize to JSON
	BaseURL   string     `json:"base_url,omitempty"`
	CacheSize int        `json:"cache_size"` // 0 disables the document embedding cache
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	return e.Provider != "" && e.APIKey != ""
}

// LLMSettings configures the generative service
type LLMSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	return l.Provider != "" && l.APIKey != ""
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderOpenAI:
		return true
	default:
		return false
	}
}
