//go:build integration

package jobqueue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgledger/modules"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/itf"
	"github.com/iota-uz/orgledger/pkg/jobqueue"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func enqueue(t *testing.T, env *itf.TestEnvironment, jobID string) *eventstore.Event {
	t.Helper()
	evt, err := env.App.Store().Append(env.Ctx(), eventstore.AppendParams{
		StreamID:        jobID,
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: 0,
		EventType:       jobqueue.EventEnqueued,
		Data: mustJSON(t, jobqueue.EnqueuedPayload{
			Process: "org.provision",
			Subject: "org-1",
		}),
		Metadata: eventstore.Metadata{CorrelationID: "corr-" + jobID, ActorID: "user:test"},
	})
	require.NoError(t, err)
	return evt
}

func claimParams(t *testing.T, jobID, workerID string, expected int64) eventstore.AppendParams {
	t.Helper()
	return eventstore.AppendParams{
		StreamID:        jobID,
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: expected,
		EventType:       jobqueue.EventClaimed,
		Data:            mustJSON(t, jobqueue.ClaimedPayload{WorkerID: workerID}),
		Metadata:        eventstore.Metadata{ActorID: "worker:" + workerID},
	}
}

func TestEnqueue_IsIdempotent(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	enqueue(t, env, "job-1")

	// A replayed or duplicated enqueue targets the same queue row.
	_, err := env.App.Store().Append(ctx, eventstore.AppendParams{
		StreamID:        "job-1",
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: eventstore.AnyVersion,
		EventType:       jobqueue.EventEnqueued,
		Data:            mustJSON(t, jobqueue.EnqueuedPayload{Process: "org.provision"}),
		Metadata:        eventstore.Metadata{ActorID: "user:test"},
	})
	require.NoError(t, err)

	var rows int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM job_queue WHERE tenant_id = $1 AND job_id = 'job-1'`, env.TenantID).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestClaim_RaceHasExactlyOneWinner(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	enqueued := enqueue(t, env, "job-1")

	const workers = 6
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Append(ctx, claimParams(t, "job-1", "w", enqueued.StreamVersion))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		lost := errors.Is(err, eventstore.ErrVersionConflict) || errors.Is(err, jobqueue.ErrNotClaimable)
		assert.True(t, lost, "loser must see a conflict or a non-claimable row, got: %v", err)
	}
	assert.Equal(t, 1, won)

	var status string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT status FROM job_queue WHERE tenant_id = $1 AND job_id = 'job-1'`, env.TenantID).Scan(&status))
	assert.Equal(t, "processing", status)
}

func TestTerminalTransitions_RequireProcessing(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	enqueued := enqueue(t, env, "job-1")

	// Completing a job that was never claimed is rejected.
	_, err := store.Append(ctx, eventstore.AppendParams{
		StreamID:        "job-1",
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: enqueued.StreamVersion,
		EventType:       jobqueue.EventCompleted,
		Data:            mustJSON(t, jobqueue.CompletedPayload{WorkerID: "w-1"}),
		Metadata:        eventstore.Metadata{ActorID: "worker:w-1"},
	})
	require.ErrorIs(t, err, jobqueue.ErrInvalidTransition)

	claim, err := store.Append(ctx, claimParams(t, "job-1", "w-1", enqueued.StreamVersion))
	require.NoError(t, err)

	_, err = store.Append(ctx, eventstore.AppendParams{
		StreamID:        "job-1",
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: claim.StreamVersion,
		EventType:       jobqueue.EventFailed,
		Data:            mustJSON(t, jobqueue.FailedPayload{WorkerID: "w-1", Error: "dns timeout"}),
		Metadata:        eventstore.Metadata{ActorID: "worker:w-1"},
	})
	require.NoError(t, err)

	var status, lastError string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT status, last_error FROM job_queue WHERE tenant_id = $1 AND job_id = 'job-1'`,
		env.TenantID).Scan(&status, &lastError))
	assert.Equal(t, "failed", status)
	assert.Equal(t, "dns timeout", lastError)
}

func TestListStale_SurfacesOldClaims(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	enqueued := enqueue(t, env, "job-1")
	_, err := store.Append(ctx, claimParams(t, "job-1", "w-1", enqueued.StreamVersion))
	require.NoError(t, err)

	// Age the claim past the cutoff.
	_, err = env.Pool.Exec(ctx,
		`UPDATE job_queue SET claimed_at = now() - interval '1 hour'
		  WHERE tenant_id = $1 AND job_id = 'job-1'`, env.TenantID)
	require.NoError(t, err)

	stale, err := jobqueue.NewQueries().ListStale(ctx, 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "job-1", stale[0].JobID)
	assert.Equal(t, jobqueue.StatusProcessing, stale[0].Status)

	fresh, err := jobqueue.NewQueries().ListStale(ctx, 2*time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestWatcher_DrivesJobToCompletion(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	enqueue(t, env, "job-1")

	watcher, err := jobqueue.NewWatcher(env.Pool, env.App.Store(), jobqueue.WatcherOptions{
		WorkerID:     "w-test",
		PollInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, watcher.RegisterHandler("org.provision", jobqueue.JobHandlerFunc(
		func(_ context.Context, job jobqueue.Job) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		})))

	runCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = watcher.Run(runCtx)

	var status string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT status FROM job_queue WHERE tenant_id = $1 AND job_id = 'job-1'`, env.TenantID).Scan(&status))
	assert.Equal(t, "completed", status)

	events, err := env.App.Store().ListByStream(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, jobqueue.EventEnqueued, events[0].EventType)
	assert.Equal(t, jobqueue.EventClaimed, events[1].EventType)
	assert.Equal(t, jobqueue.EventCompleted, events[2].EventType)
}
