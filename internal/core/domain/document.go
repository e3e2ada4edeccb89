package domain

import (
	"fmt"
	"time"
)

// SourceFile is a repository file handed to the chunker. It is never persisted.
type SourceFile struct {
	Path    string `json:"path"`
	Content []byte `json:"-"`
}

// FileRef identifies a file in a repository listing before its content is fetched
type FileRef struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Size int    `json:"size"`
}

// Chunk is an ordered, size-bounded slice of a file's content
type Chunk struct {
	SourcePath string `json:"source_path"`
	Index      int    `json:"index"` // 1-based
	Total      int    `json:"total"`
	Content    []byte `json:"-"`
}

// Label returns the document label for this chunk.
// Single-chunk files are labeled with their path only.
func (c Chunk) Label() string {
	if c.Total <= 1 {
		return c.SourcePath
	}
	return fmt.Sprintf("%s_chunk_%d/%d", c.SourcePath, c.Index, c.Total)
}

// Position returns the "i/total" marker stored in document metadata
func (c Chunk) Position() string {
	return fmt.Sprintf("%d/%d", c.Index, c.Total)
}

// Document is a persisted chunk. Documents are immutable once created.
type Document struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	Generation  int64             `json:"generation"`
	Label       string            `json:"label"`
	SourcePath  string            `json:"source_path"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Metadata keys written for every document
const (
	MetadataSource = "source"
	MetadataChunk  = "chunk"
)

// NewDocument builds a document for a chunk of the given project generation
func NewDocument(projectID string, generation int64, repoURL string, chunk Chunk) *Document {
	return &Document{
		ID:          GenerateID(),
		ProjectID:   projectID,
		Generation:  generation,
		Label:       chunk.Label(),
		SourcePath:  chunk.SourcePath,
		ChunkIndex:  chunk.Index,
		TotalChunks: chunk.Total,
		Content:     string(chunk.Content),
		Metadata:    chunkMetadata(repoURL, chunk),
		CreatedAt:   time.Now(),
	}
}

// chunkMetadata records the source repository, plus the chunk position
// for files that were split.
func chunkMetadata(repoURL string, chunk Chunk) map[string]string {
	md := map[string]string{MetadataSource: repoURL}
	if chunk.Total > 1 {
		md[MetadataChunk] = chunk.Position()
	}
	return md
}

// VectorRecord pairs a document with its embedding
type VectorRecord struct {
	DocumentID string    `json:"document_id"`
	ProjectID  string    `json:"project_id"`
	Generation int64     `json:"generation"`
	Values     []float32 `json:"values"`
	Seq        int64     `json:"seq"` // deterministic insertion order, used for tie-breaking
}

// Dimension returns the vector length
func (v *VectorRecord) Dimension() int {
	return len(v.Values)
}
