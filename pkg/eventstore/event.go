package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StreamType is the coarse routing key of an event. Every value declared
// here must either have a registered processor or be explicitly ignored;
// Registry.Validate enforces that before the engine accepts its first append.
type StreamType string

const (
	StreamOrganization StreamType = "organization"
	StreamUser         StreamType = "user"
	StreamInvitation   StreamType = "invitation"
	StreamRole         StreamType = "role"
	StreamJob          StreamType = "job"

	// Streams that intentionally have no projection. Routed to an explicit
	// no-op so "ignored" and "unrecognized" are never confused.
	StreamAudit     StreamType = "audit"
	StreamTelemetry StreamType = "telemetry"
)

func AllStreamTypes() []StreamType {
	return []StreamType{
		StreamOrganization,
		StreamUser,
		StreamInvitation,
		StreamRole,
		StreamJob,
		StreamAudit,
		StreamTelemetry,
	}
}

// AnyVersion skips the optimistic concurrency check. Callers opening a new
// stream, or callers that genuinely do not care about ordering, use it.
const AnyVersion int64 = -1

// Metadata travels with every event. CorrelationID threads a whole business
// transaction across streams; CausationID names the event that triggered
// this one. Both are opaque to the engine beyond being queryable.
type Metadata struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
	ActorID       string    `json:"actor_id" validate:"required"`
	Source        string    `json:"source,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event is an immutable fact in the append-only log.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	StreamID      string          `json:"stream_id"`
	StreamType    StreamType      `json:"stream_type"`
	StreamVersion int64           `json:"stream_version"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Metadata      Metadata        `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	GlobalSeq     int64           `json:"global_seq"`
}

// AppendParams is the producer-facing append envelope. The payload schema is
// opaque per EventType; only the envelope is validated here.
type AppendParams struct {
	StreamID        string     `validate:"required"`
	StreamType      StreamType `validate:"required"`
	ExpectedVersion int64      `validate:"gte=-1"`
	EventType       string     `validate:"required,contains=."`
	Data            json.RawMessage
	Metadata        Metadata
}
