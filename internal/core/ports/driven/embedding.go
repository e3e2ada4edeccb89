package driven

import "context"

// EmbeddingService turns text into fixed-length vectors.
// Every vector a service returns has Dimensions() entries.
type EmbeddingService interface {
	// Embed embeds chunk contents for storage. The result has one vector
	// per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a question. Providers with retrieval task types
	// use the query variant here.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	Dimensions() int
	Model() string

	// HealthCheck performs a minimal embedding call.
	HealthCheck(ctx context.Context) error

	Close() error
}
