package domain

import "time"

// ProjectStatus is the analysis state of a project
type ProjectStatus string

const (
	ProjectStatusNotAnalyzed ProjectStatus = "not_analyzed"
	ProjectStatusAnalyzed    ProjectStatus = "analyzed"
)

// ProjectState holds the generation pointer for a project.
// Readers only ever look at ActiveGeneration; ingestion stages new data under a
// fresh generation and swaps the pointer once the new set is complete.
type ProjectState struct {
	ProjectID        string     `json:"project_id"`
	ActiveGeneration int64      `json:"active_generation"`
	LatestGeneration int64      `json:"latest_generation"`
	Dimension        int        `json:"dimension"`
	RepoURL          string     `json:"repo_url,omitempty"`
	LastIngestAt     *time.Time `json:"last_ingest_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ProjectSummary is the caller-facing view of a project
type ProjectSummary struct {
	ProjectID     string        `json:"project_id"`
	Status        ProjectStatus `json:"status"`
	Generation    int64         `json:"generation"`
	DocumentCount int           `json:"document_count"`
	Dimension     int           `json:"dimension"`
	RepoURL       string        `json:"repo_url,omitempty"`
	LastIngestAt  *time.Time    `json:"last_ingest_at,omitempty"`
}

// StatusFor derives the project status from its active document count
func StatusFor(documentCount int) ProjectStatus {
	if documentCount > 0 {
		return ProjectStatusAnalyzed
	}
	return ProjectStatusNotAnalyzed
}
