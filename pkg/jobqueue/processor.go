package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

// NotifyChannel carries job ids of freshly enqueued work. The NOTIFY is
// issued inside the append transaction, so subscribers only ever see
// committed jobs.
const NotifyChannel = "orgledger_jobs_pending"

// Processor is the queue projector: the only write path into the job_queue
// projection. Every transition is a conditional update on the current
// status, so racing workers are rejected rather than overwritten.
type Processor struct {
	log *logrus.Logger
}

func NewProcessor(log *logrus.Logger) *Processor {
	return &Processor{log: log}
}

func (p *Processor) StreamType() eventstore.StreamType {
	return eventstore.StreamJob
}

func (p *Processor) Handle(ctx context.Context, tx repo.Tx, evt *eventstore.Event, appender eventstore.Appender) error {
	switch evt.EventType {
	case EventEnqueued:
		return p.applyEnqueued(ctx, tx, evt)
	case EventClaimed:
		return p.applyClaimed(ctx, tx, evt)
	case EventCompleted:
		return p.applyCompleted(ctx, tx, evt)
	case EventFailed:
		return p.applyFailed(ctx, tx, evt)
	default:
		return fmt.Errorf("%w: %s", eventstore.ErrUnhandledEventType, evt.EventType)
	}
}

func (p *Processor) Reset(ctx context.Context, tx repo.Tx) error {
	_, err := tx.Exec(ctx, `TRUNCATE job_queue`)
	return err
}

func (p *Processor) applyEnqueued(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload EnqueuedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", EventEnqueued, err)
	}
	if payload.Process == "" {
		return fmt.Errorf("%w: enqueue without process", eventstore.ErrProjectionConstraint)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO job_queue (id, tenant_id, job_id, process, subject, status, external_ref, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, job_id) DO NOTHING`,
		uuid.New(), evt.TenantID, evt.StreamID, payload.Process, payload.Subject,
		string(StatusPending), payload.ExternalRef, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job row: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, evt.StreamID); err != nil {
		return fmt.Errorf("notify pending channel: %w", err)
	}
	return nil
}

func (p *Processor) applyClaimed(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload ClaimedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", EventClaimed, err)
	}
	if payload.WorkerID == "" {
		return fmt.Errorf("%w: claim without worker id", eventstore.ErrProjectionConstraint)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE job_queue
		    SET status = $1, worker_id = $2, claimed_at = $3
		  WHERE tenant_id = $4 AND job_id = $5 AND status = $6`,
		string(StatusProcessing), payload.WorkerID, evt.CreatedAt,
		evt.TenantID, evt.StreamID, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("claim job row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s", ErrNotClaimable, evt.StreamID)
	}
	return nil
}

func (p *Processor) applyCompleted(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload CompletedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", EventCompleted, err)
	}
	return p.finish(ctx, tx, evt, StatusCompleted, "")
}

func (p *Processor) applyFailed(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload FailedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", EventFailed, err)
	}
	return p.finish(ctx, tx, evt, StatusFailed, payload.Error)
}

func (p *Processor) finish(ctx context.Context, tx repo.Tx, evt *eventstore.Event, status Status, lastError string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE job_queue
		    SET status = $1, finished_at = $2, last_error = $3
		  WHERE tenant_id = $4 AND job_id = $5 AND status = $6`,
		string(status), evt.CreatedAt, lastError,
		evt.TenantID, evt.StreamID, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("finish job row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not processing", ErrInvalidTransition, evt.StreamID)
	}
	return nil
}
