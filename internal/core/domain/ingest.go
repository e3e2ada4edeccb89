package domain

// Ingestion defaults
const (
	DefaultMaxEntries    = 100
	DefaultMaxChunkBytes = 30000
)

// FilterSpec carries caller-supplied include/exclude patterns.
// They are merged over the default content rules.
type FilterSpec struct {
	Include []string `json:"include,omitempty"` // directory names or globs that make a path eligible
	Exclude []string `json:"exclude,omitempty"` // globs that make a path ineligible
}

// IngestRequest describes one ingestion run for a project
type IngestRequest struct {
	ProjectID   string     `json:"project_id"`
	RepoURL     string     `json:"repo_url"`
	Filter      FilterSpec `json:"filter"`
	MaxEntries  int        `json:"max_entries"`
	Update      bool       `json:"update"`
	AccessToken string     `json:"-"` // never serialized or queued
}

// Validate checks required fields and applies defaults
func (r *IngestRequest) Validate() error {
	if r.ProjectID == "" || r.RepoURL == "" {
		return ErrInvalidInput
	}
	if r.MaxEntries <= 0 {
		r.MaxEntries = DefaultMaxEntries
	}
	return nil
}

// IngestResult reports the outcome of an ingestion run.
// Reaching the entry cap is reported through CapReached, never as an error.
type IngestResult struct {
	ProjectID       string   `json:"project_id"`
	Generation      int64    `json:"generation"`
	SavedEntries    int      `json:"saved_entries"`
	TotalEligible   int      `json:"total_files"`
	Attempted       int      `json:"attempted"`
	FailedPaths     []string `json:"failed_paths,omitempty"`
	SkippedPaths    []string `json:"skipped_paths,omitempty"`
	CapReached      bool     `json:"cap_reached"`
	AlreadyAnalyzed bool     `json:"already_analyzed"`
	DurationSeconds float64  `json:"duration_seconds"`
}
