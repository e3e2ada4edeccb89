package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIngestProject runs an ingestion for one project
	TaskTypeIngestProject TaskType = "ingest_project"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Payload keys for ingest_project tasks
const (
	payloadProjectID  = "project_id"
	payloadRepoURL    = "repo_url"
	payloadMaxEntries = "max_entries"
	payloadUpdate     = "update"
	payloadInclude    = "include"
	payloadExclude    = "exclude"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// ProjectID is the project this task operates on
	ProjectID string `json:"project_id"`

	// Payload contains task-specific data.
	// Credentials are never stored here.
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for retried tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, projectID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		ProjectID:    projectID,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIngestTask creates a task that runs the given ingestion request.
// The access token is deliberately dropped.
func NewIngestTask(req IngestRequest) *Task {
	return NewTask(TaskTypeIngestProject, req.ProjectID, map[string]string{
		payloadProjectID:  req.ProjectID,
		payloadRepoURL:    req.RepoURL,
		payloadMaxEntries: strconv.Itoa(req.MaxEntries),
		payloadUpdate:     strconv.FormatBool(req.Update),
		payloadInclude:    strings.Join(req.Filter.Include, "\n"),
		payloadExclude:    strings.Join(req.Filter.Exclude, "\n"),
	})
}

// IngestRequest rebuilds the ingestion request carried by an ingest_project task
func (t *Task) IngestRequest() (IngestRequest, error) {
	if t.Type != TaskTypeIngestProject || t.Payload == nil {
		return IngestRequest{}, ErrInvalidInput
	}

	req := IngestRequest{
		ProjectID: t.Payload[payloadProjectID],
		RepoURL:   t.Payload[payloadRepoURL],
		Filter: FilterSpec{
			Include: splitLines(t.Payload[payloadInclude]),
			Exclude: splitLines(t.Payload[payloadExclude]),
		},
	}
	if v := t.Payload[payloadMaxEntries]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return IngestRequest{}, ErrInvalidInput
		}
		req.MaxEntries = n
	}
	req.Update = t.Payload[payloadUpdate] == "true"

	if err := req.Validate(); err != nil {
		return IngestRequest{}, err
	}
	return req, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// 2s, 4s, 8s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}
