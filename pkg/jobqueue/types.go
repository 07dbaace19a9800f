package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the job lifecycle state. Transitions happen exclusively through
// events on the job's stream; workers never write rows directly.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Event types on the job stream. Enqueued is synthetic (emitted by a domain
// handler inside the originating append); the rest are emitted by workers.
const (
	EventEnqueued  = "job.enqueued"
	EventClaimed   = "job.claimed"
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
)

// Job is one row of the queue projection.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	JobID       string     `json:"job_id"`  // stream id of the job stream
	Process     string     `json:"process"` // which long-running process to run
	Subject     string     `json:"subject"` // stream id of the entity the job is about
	Status      Status     `json:"status"`
	WorkerID    string     `json:"worker_id,omitempty"`
	ExternalRef string     `json:"external_ref,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type EnqueuedPayload struct {
	Process     string `json:"process"`
	Subject     string `json:"subject"`
	ExternalRef string `json:"external_ref,omitempty"`
}

type ClaimedPayload struct {
	WorkerID string `json:"worker_id"`
}

type CompletedPayload struct {
	WorkerID string          `json:"worker_id"`
	Result   json.RawMessage `json:"result,omitempty"`
}

type FailedPayload struct {
	WorkerID string `json:"worker_id"`
	Error    string `json:"error"`
}
