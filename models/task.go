package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of an async task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// SearchResult is the outcome of one shopping query
type SearchResult struct {
	QueryID         string           `json:"query_id"`
	Query           string           `json:"query"`
	Intent          QueryIntent      `json:"intent"`
	Recommendations []Recommendation `json:"recommendations"`
	Report          string           `json:"report"`
}

// SearchTask represents an async shopping query
type SearchTask struct {
	mu          sync.RWMutex
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	Status      TaskStatus    `json:"status"`
	Message     string        `json:"message"`
	Result      *SearchResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// NewSearchTask creates a queued task for a query
func NewSearchTask(query string) *SearchTask {
	return &SearchTask{
		ID:        "task_" + uuid.NewString(),
		Query:     query,
		Status:    TaskStatusQueued,
		Message:   "Task queued for processing",
		CreatedAt: time.Now(),
	}
}

// Start marks the task as processing
func (t *SearchTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusProcessing
	t.Message = "Searching marketplaces..."
	now := time.Now()
	t.StartedAt = &now
}

// Complete marks the task as completed with result
func (t *SearchTask) Complete(result *SearchResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusCompleted
	t.Message = "Search completed successfully"
	t.Result = result
	now := time.Now()
	t.CompletedAt = &now
}

// Fail marks the task as failed with error
func (t *SearchTask) Fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusFailed
	t.Message = "Search failed"
	t.Error = reason
	now := time.Now()
	t.CompletedAt = &now
}

// Snapshot returns a copy safe to encode while workers update the task
func (t *SearchTask) Snapshot() SearchTask {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return SearchTask{
		ID:          t.ID,
		Query:       t.Query,
		Status:      t.Status,
		Message:     t.Message,
		Result:      t.Result,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// IsCompleted returns true if the task is in a final state
func (t *SearchTask) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// IsActive returns true if the task is still running
func (t *SearchTask) IsActive() bool {
	return !t.IsCompleted()
}

// Duration returns the duration of the task
func (t *SearchTask) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.StartedAt == nil {
		return 0
	}

	endTime := time.Now()
	if t.CompletedAt != nil {
		endTime = *t.CompletedAt
	}

	return endTime.Sub(*t.StartedAt)
}
