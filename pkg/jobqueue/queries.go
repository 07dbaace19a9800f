package jobqueue

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-uz/orgledger/pkg/composables"
)

// Queries is the read side of the queue projection, used by the watcher, the
// ops API and the external reaper.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

const jobColumns = `id, tenant_id, job_id, process, subject, status, worker_id, external_ref, last_error, enqueued_at, claimed_at, finished_at`

func (q *Queries) ListPending(ctx context.Context, limit int) ([]Job, error) {
	return q.ListByStatus(ctx, StatusPending, limit)
}

func (q *Queries) ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error) {
	return q.list(ctx,
		`SELECT `+jobColumns+` FROM job_queue
		  WHERE tenant_id = $1 AND status = $2
		  ORDER BY enqueued_at
		  LIMIT $3`,
		string(status), limit)
}

// ListStale returns processing rows claimed before the cutoff. The engine
// never expires claims itself; an external reaper queries this and decides.
func (q *Queries) ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]Job, error) {
	cutoff := time.Now().Add(-olderThan)
	return q.list(ctx,
		`SELECT `+jobColumns+` FROM job_queue
		  WHERE tenant_id = $1 AND status = 'processing' AND claimed_at < $2
		  ORDER BY claimed_at
		  LIMIT $3`,
		cutoff, limit)
}

func (q *Queries) Get(ctx context.Context, jobID string) (*Job, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM job_queue WHERE tenant_id = $1 AND job_id = $2`,
		tenantID, jobID)
	return scanJob(row)
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]Job, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j      Job
		status string
	)
	if err := row.Scan(
		&j.ID, &j.TenantID, &j.JobID, &j.Process, &j.Subject, &status,
		&j.WorkerID, &j.ExternalRef, &j.LastError,
		&j.EnqueuedAt, &j.ClaimedAt, &j.FinishedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan job")
	}
	j.Status = Status(status)
	return &j, nil
}
