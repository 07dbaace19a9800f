//go:build integration

package eventstore_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgledger/modules"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/itf"
)

func appendParams(streamID string, st eventstore.StreamType, version int64, eventType, data string) eventstore.AppendParams {
	return eventstore.AppendParams{
		StreamID:        streamID,
		StreamType:      st,
		ExpectedVersion: version,
		EventType:       eventType,
		Data:            json.RawMessage(data),
		Metadata: eventstore.Metadata{
			CorrelationID: "corr-" + streamID,
			ActorID:       "user:test",
			Source:        "test",
		},
	}
}

func TestAppend_VersionsAreMonotonic(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	first, err := store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Acme","slug":"acme"}`))
	require.NoError(t, err)
	require.EqualValues(t, 1, first.StreamVersion)

	second, err := store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 1,
		"organization.updated", `{"name":"Acme Inc"}`))
	require.NoError(t, err)
	require.EqualValues(t, 2, second.StreamVersion)

	events, err := store.ListByStream(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.EqualValues(t, 1, events[0].StreamVersion)
	assert.EqualValues(t, 2, events[1].StreamVersion)
}

func TestAppend_VersionConflict(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	_, err := store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Acme","slug":"acme"}`))
	require.NoError(t, err)

	_, err = store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.updated", `{"name":"Dup"}`))
	require.ErrorIs(t, err, eventstore.ErrVersionConflict)

	events, err := store.ListByStream(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestAppend_ConcurrentWritersOneWins(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	_, err := store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Acme","slug":"acme"}`))
	require.NoError(t, err)

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 1,
				"organization.updated", `{"name":"Racer"}`))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, eventstore.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, won)

	events, err := store.ListByStream(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestAppend_UnroutedStreamTypeLeavesNoTrace(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	_, err := env.App.Store().Append(ctx, appendParams("x-1", eventstore.StreamType("payment"), 0,
		"payment.created", `{}`))
	require.ErrorIs(t, err, eventstore.ErrUnroutedStreamType)

	events, err := env.App.Store().ListByStream(ctx, "x-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppend_UnhandledEventTypeRollsBackEverything(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	_, err := env.App.Store().Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.exploded", `{}`))
	require.ErrorIs(t, err, eventstore.ErrUnhandledEventType)

	events, err := env.App.Store().ListByStream(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, events, "failed dispatch must not persist the event")

	var count int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM organizations WHERE tenant_id = $1`, env.TenantID).Scan(&count))
	assert.Zero(t, count)
}

func TestAppend_IgnoredStreamPersistsWithoutProjection(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	evt, err := env.App.Store().Append(ctx, appendParams("audit-1", eventstore.StreamAudit, eventstore.AnyVersion,
		"audit.logged", `{"action":"login"}`))
	require.NoError(t, err)
	require.NotNil(t, evt)

	events, err := env.App.Store().ListByStream(ctx, "audit-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestAppend_TenantsAreIsolated(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)

	_, err := env.App.Store().Append(env.Ctx(), appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Acme","slug":"acme"}`))
	require.NoError(t, err)

	events, err := env.App.Store().ListByStream(env.Ctx(), "org-1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	// Same stream id under a different tenant starts at version zero.
	evt, err := env.App.Store().Append(env.CtxFor(uuid.New()), appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Other","slug":"other"}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1, evt.StreamVersion)
}

func TestReplay_RebuildsProjectionsWithoutDuplicatingEvents(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	_, err := store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Acme","slug":"acme"}`))
	require.NoError(t, err)
	_, err = store.Append(ctx, appendParams("org-1", eventstore.StreamOrganization, 1,
		"organization.provisioning.requested", `{"job_id":"job-1","process":"org.provision"}`))
	require.NoError(t, err)

	var before int
	require.NoError(t, env.Pool.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&before))

	// Corrupt a projection row, then rebuild.
	_, err = env.Pool.Exec(ctx, `UPDATE organizations SET name = 'corrupted'`)
	require.NoError(t, err)

	n, err := store.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, n)

	var after int
	require.NoError(t, env.Pool.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&after))
	assert.Equal(t, before, after, "replay must not append synthetic events again")

	var name string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT name FROM organizations WHERE tenant_id = $1 AND org_id = 'org-1'`, env.TenantID).Scan(&name))
	assert.Equal(t, "Acme", name)

	var status string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT status FROM job_queue WHERE tenant_id = $1 AND job_id = 'job-1'`, env.TenantID).Scan(&status))
	assert.Equal(t, "pending", status)

	// Replay is itself idempotent.
	n2, err := store.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, n2)
}

func TestListByCorrelation_ReturnsCreationOrderAcrossStreams(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()
	store := env.App.Store()

	params := appendParams("org-1", eventstore.StreamOrganization, 0,
		"organization.created", `{"name":"Acme","slug":"acme"}`)
	params.Metadata.CorrelationID = "corr-shared"
	_, err := store.Append(ctx, params)
	require.NoError(t, err)

	params = appendParams("role-1", eventstore.StreamRole, 0,
		"role.created", `{"name":"admin"}`)
	params.Metadata.CorrelationID = "corr-shared"
	_, err = store.Append(ctx, params)
	require.NoError(t, err)

	events, err := store.ListByCorrelation(ctx, "corr-shared")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "organization.created", events[0].EventType)
	assert.Equal(t, "role.created", events[1].EventType)
}
