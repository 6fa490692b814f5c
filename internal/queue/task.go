// Package queue implements the Redis-backed task queue client: typed queues
// per task kind, at-least-once delivery via LPUSH/BRPOP, and task status
// tracking with a 7-day retention window.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the category of deferred work a Task wraps.
type Kind string

const (
	// KindWorkflowExecute wraps a workflow engine execution.
	KindWorkflowExecute Kind = "workflow_execute"
	// KindChatProcess wraps an asynchronous agent orchestrator turn.
	KindChatProcess Kind = "chat_process"
	// KindKnowledgeSearch wraps a knowledge-base retrieval call.
	KindKnowledgeSearch Kind = "knowledge_search"
)

// Status is a Task's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is a unit of deferred work. Retention is a fixed 7-day window from
// the server.
type Task struct {
	ID     string         `json:"id"`
	Kind   Kind           `json:"type"`
	Status Status         `json:"status"`

	Params map[string]any `json:"params"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Metadata map[string]any `json:"metadata"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// NewTask constructs a Task in PENDING status with a fresh id.
func NewTask(kind Kind, params map[string]any, maxRetries int) *Task {
	now := time.Now()
	if params == nil {
		params = map[string]any{}
	}
	return &Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     StatusPending,
		Params:     params,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]any{},
		MaxRetries: maxRetries,
	}
}

// TraceID returns the trace id propagated in Metadata["trace_id"], if any.
func (t *Task) TraceID() (string, bool) {
	v, ok := t.Metadata["trace_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
