package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/orgledger/pkg/composables"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/logging"
)

// JobHandler runs the actual long-running work for one process name. The
// orchestration semantics inside a handler (multi-step workflows, their own
// retries and compensation) are the caller's business; the watcher only
// drives the event protocol around it.
type JobHandler interface {
	Handle(ctx context.Context, job Job) (json.RawMessage, error)
}

type JobHandlerFunc func(ctx context.Context, job Job) (json.RawMessage, error)

func (f JobHandlerFunc) Handle(ctx context.Context, job Job) (json.RawMessage, error) {
	return f(ctx, job)
}

// Watcher polls the queue projection for pending rows and drives each
// matching job through claim → handler → terminal event. Every transition is
// an event append; the watcher never touches the projection directly, so a
// claim lost to another worker surfaces as a conflict and the watcher simply
// moves on.
type Watcher struct {
	pool     *pgxpool.Pool
	store    *eventstore.Store
	handlers map[string]JobHandler
	opts     WatcherOptions

	lockKey int64
	m       *metrics
}

func NewWatcher(pool *pgxpool.Pool, store *eventstore.Store, opts WatcherOptions) (*Watcher, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pool is required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if opts.WorkerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", ErrInvalidConfig)
	}

	opts.setDefaults()
	if opts.Logger == nil {
		opts.Logger = logging.NopEntry()
	}

	return &Watcher{
		pool:     pool,
		store:    store,
		handlers: map[string]JobHandler{},
		opts:     opts,
		lockKey:  advisoryLockKey("jobqueue:watcher"),
		m:        getMetrics(),
	}, nil
}

func (w *Watcher) RegisterHandler(process string, h JobHandler) error {
	if process == "" || h == nil {
		return fmt.Errorf("%w: process and handler are required", ErrInvalidConfig)
	}
	if _, exists := w.handlers[process]; exists {
		return fmt.Errorf("%w: handler for %q already registered", ErrInvalidConfig, process)
	}
	w.handlers[process] = h
	return nil
}

func (w *Watcher) Run(ctx context.Context) error {
	if len(w.handlers) == 0 {
		return fmt.Errorf("%w: no job handlers registered", ErrInvalidConfig)
	}

	if w.opts.SingleActive {
		return w.runSingleActive(ctx)
	}
	w.m.watcherLeader.Set(1)
	return w.runLoop(ctx)
}

func (w *Watcher) runSingleActive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := w.pool.Acquire(ctx)
		if err != nil {
			w.opts.Logger.WithError(err).Warn("jobqueue: failed to acquire connection for leader election")
			if err := sleep(ctx, w.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		var leader bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, w.lockKey).Scan(&leader); err != nil {
			conn.Release()
			w.opts.Logger.WithError(err).Warn("jobqueue: advisory lock attempt failed")
			if err := sleep(ctx, w.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		if !leader {
			w.m.watcherLeader.Set(0)
			conn.Release()
			if err := sleep(ctx, w.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		w.m.watcherLeader.Set(1)
		w.opts.Logger.Info("jobqueue: watcher became leader")

		err = w.runLoop(ctx)
		var unlocked bool
		_ = conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, w.lockKey).Scan(&unlocked)
		conn.Release()
		return err
	}
}

func (w *Watcher) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := w.observeQueueDepth(ctx); err != nil {
				w.opts.Logger.WithError(err).Debug("jobqueue: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(w.opts.ObserveQueueDepthEvery)
		}

		if err := w.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			failures++
			w.opts.Logger.WithError(err).Warn("jobqueue: watch tick failed")
			if err := sleep(ctx, backoff(failures, w.opts.MaxBackoff)); err != nil {
				return err
			}
			continue
		}
		failures = 0
	}
}

func (w *Watcher) processOnce(ctx context.Context) error {
	jobs, err := w.candidates(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		handler, ok := w.handlers[job.Process]
		if !ok {
			// Another worker fleet owns this process.
			continue
		}
		w.runJob(ctx, job, handler)
	}
	return nil
}

// candidates selects pending rows across all tenants; per-job work then runs
// under that job's tenant.
func (w *Watcher) candidates(ctx context.Context) ([]Job, error) {
	rows, err := w.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM job_queue WHERE status = $1 ORDER BY enqueued_at LIMIT $2`,
		string(StatusPending), w.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select pending jobs: %w", err)
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

func (w *Watcher) runJob(ctx context.Context, job Job, handler JobHandler) {
	jobCtx := composables.WithPool(ctx, w.pool)
	jobCtx = composables.WithTenantID(jobCtx, job.TenantID)
	log := w.opts.Logger.WithFields(map[string]any{
		"job_id":  job.JobID,
		"process": job.Process,
		"tenant":  job.TenantID.String(),
	})

	claim, ok := w.claim(jobCtx, job, log)
	if !ok {
		return
	}

	handleCtx, cancel := context.WithTimeout(jobCtx, w.opts.JobTimeout)
	start := time.Now()
	result, handleErr := handler.Handle(handleCtx, job)
	cancel()
	w.m.handleLatency.WithLabelValues(job.Process).Observe(time.Since(start).Seconds())

	if handleErr != nil {
		log.WithError(handleErr).Warn("jobqueue: job failed")
		w.finish(jobCtx, job, claim, EventFailed, mustJSON(FailedPayload{
			WorkerID: w.opts.WorkerID,
			Error:    handleErr.Error(),
		}), log)
		w.m.processedTotal.WithLabelValues(job.Process, "failed").Inc()
		return
	}

	w.finish(jobCtx, job, claim, EventCompleted, mustJSON(CompletedPayload{
		WorkerID: w.opts.WorkerID,
		Result:   result,
	}), log)
	w.m.processedTotal.WithLabelValues(job.Process, "completed").Inc()
}

// claim appends job.claimed with the stream version observed right now.
// Exactly one racing worker wins; the rest hit VersionConflict or
// NotClaimable and walk away.
func (w *Watcher) claim(ctx context.Context, job Job, log interface{ Debugf(string, ...any) }) (*eventstore.Event, bool) {
	history, err := w.store.ListByStream(ctx, job.JobID)
	if err != nil || len(history) == 0 {
		w.m.claimsTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	origin := history[0]

	claim, err := w.store.Append(ctx, eventstore.AppendParams{
		StreamID:        job.JobID,
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: history[len(history)-1].StreamVersion,
		EventType:       EventClaimed,
		Data:            mustJSON(ClaimedPayload{WorkerID: w.opts.WorkerID}),
		Metadata: eventstore.Metadata{
			CorrelationID: origin.Metadata.CorrelationID,
			CausationID:   origin.ID.String(),
			ActorID:       "worker:" + w.opts.WorkerID,
			Source:        "jobqueue.watcher",
		},
	})
	if err != nil {
		if errors.Is(err, eventstore.ErrVersionConflict) || errors.Is(err, ErrNotClaimable) {
			log.Debugf("jobqueue: claim lost: %v", err)
			w.m.claimsTotal.WithLabelValues("lost").Inc()
			return nil, false
		}
		w.m.claimsTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	w.m.claimsTotal.WithLabelValues("won").Inc()
	return claim, true
}

func (w *Watcher) finish(ctx context.Context, job Job, claim *eventstore.Event, eventType string, payload json.RawMessage, log interface{ Warnf(string, ...any) }) {
	_, err := w.store.Append(ctx, eventstore.AppendParams{
		StreamID:        job.JobID,
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: claim.StreamVersion,
		EventType:       eventType,
		Data:            payload,
		Metadata: eventstore.Metadata{
			CorrelationID: claim.Metadata.CorrelationID,
			CausationID:   claim.ID.String(),
			ActorID:       "worker:" + w.opts.WorkerID,
			Source:        "jobqueue.watcher",
		},
	})
	if err != nil {
		// The row stays processing: visible to the reaper, never lost.
		log.Warnf("jobqueue: terminal append for %s failed: %v", job.JobID, err)
	}
}

func (w *Watcher) observeQueueDepth(ctx context.Context) error {
	var pending, processing int64
	if err := w.pool.QueryRow(ctx,
		`SELECT count(*) FROM job_queue WHERE status = 'pending'`).Scan(&pending); err != nil {
		return fmt.Errorf("pending count: %w", err)
	}
	if err := w.pool.QueryRow(ctx,
		`SELECT count(*) FROM job_queue WHERE status = 'processing'`).Scan(&processing); err != nil {
		return fmt.Errorf("processing count: %w", err)
	}
	w.m.pending.Set(float64(pending))
	w.m.processing.Set(float64(processing))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
