package domain

import "sync/atomic"

// RuntimeConfig records the backends chosen at startup and whether the AI
// services are currently configured. Safe for concurrent use.
type RuntimeConfig struct {
	StoreBackend string // postgres | memory
	QueueBackend string // redis | postgres | memory

	embedding atomic.Bool
	llm       atomic.Bool
}

func NewRuntimeConfig(storeBackend, queueBackend string) *RuntimeConfig {
	return &RuntimeConfig{StoreBackend: storeBackend, QueueBackend: queueBackend}
}

func (c *RuntimeConfig) EmbeddingAvailable() bool { return c.embedding.Load() }
func (c *RuntimeConfig) LLMAvailable() bool       { return c.llm.Load() }

func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) { c.embedding.Store(available) }
func (c *RuntimeConfig) SetLLMAvailable(available bool)       { c.llm.Store(available) }

// CanIngest reports whether chunks can be embedded.
func (c *RuntimeConfig) CanIngest() bool {
	return c.EmbeddingAvailable()
}

// CanAnswer reports whether a question can be embedded and answered.
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}
