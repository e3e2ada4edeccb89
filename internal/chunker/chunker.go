package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// Mode selects how chunk boundaries are placed.
type Mode int

const (
	// ModeRuneSafe never cuts inside a UTF-8 encoded character when the
	// input is valid UTF-8.
	ModeRuneSafe Mode = iota

	// ModeByteExact cuts at fixed byte offsets regardless of encoding.
	// Matches documents stored by earlier deployments bit for bit.
	ModeByteExact
)

// String returns the mode name used in configuration.
func (m Mode) String() string {
	if m == ModeByteExact {
		return "byte_exact"
	}
	return "rune_safe"
}

// ParseMode maps a CHUNK_MODE value to a Mode. "byte" and "byte_exact"
// select ModeByteExact; "rune", "rune_safe", empty and unknown values select
// ModeRuneSafe. Matching ignores case and surrounding space.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "byte", "byte_exact", "byte-exact":
		return ModeByteExact
	default:
		return ModeRuneSafe
	}
}

// Config configures the chunker.
type Config struct {
	// MaxChunkBytes is the maximum bytes per chunk
	MaxChunkBytes int

	// Mode selects the boundary placement
	Mode Mode
}

// DefaultConfig returns the defaults used for repository files.
func DefaultConfig() Config {
	return Config{
		MaxChunkBytes: domain.DefaultMaxChunkBytes,
		Mode:          ModeRuneSafe,
	}
}

// Chunker splits file content into ordered, size-bounded chunks.
// Chunks never overlap and their concatenation reproduces the input.
type Chunker struct {
	config Config
}

// New creates a new chunker with the given config.
func New(config Config) *Chunker {
	if config.MaxChunkBytes <= 0 {
		config.MaxChunkBytes = domain.DefaultMaxChunkBytes
	}
	return &Chunker{config: config}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Split splits content into chunks labeled with path.
// Content that fits in one chunk yields exactly one chunk, including empty content.
func (c *Chunker) Split(path string, content []byte) []domain.Chunk {
	max := c.config.MaxChunkBytes
	if len(content) <= max {
		return []domain.Chunk{{SourcePath: path, Index: 1, Total: 1, Content: content}}
	}

	var parts [][]byte
	start := 0
	for start < len(content) {
		end := start + max
		if end >= len(content) {
			end = len(content)
		} else if c.config.Mode == ModeRuneSafe {
			end = runeBoundary(content, start, end)
		}
		parts = append(parts, content[start:end])
		start = end
	}

	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.Chunk{
			SourcePath: path,
			Index:      i + 1,
			Total:      len(parts),
			Content:    part,
		}
	}
	return chunks
}

// runeBoundary moves end back to the start of the rune it falls in.
// Returns end unchanged when no rune start is found within utf8.UTFMax-1 bytes.
func runeBoundary(content []byte, start, end int) int {
	for i := 0; i < utf8.UTFMax && end-i > start; i++ {
		if utf8.RuneStart(content[end-i]) {
			return end - i
		}
	}
	return end
}
