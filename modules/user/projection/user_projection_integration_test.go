//go:build integration

package projection_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgledger/modules"
	userevents "github.com/iota-uz/orgledger/modules/user/domain/events"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/itf"
)

func appendUser(t *testing.T, env *itf.TestEnvironment, version int64, eventType string, payload any) *eventstore.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	evt, err := env.App.Store().Append(env.Ctx(), eventstore.AppendParams{
		StreamID:        "user-1",
		StreamType:      eventstore.StreamUser,
		ExpectedVersion: version,
		EventType:       eventType,
		Data:            data,
		Metadata:        eventstore.Metadata{ActorID: "user:admin"},
	})
	require.NoError(t, err)
	return evt
}

func TestRoleAssignment_WritesJunctionAndDenormalizedList(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	appendUser(t, env, 0, userevents.UserCreated,
		userevents.UserCreatedV1{Email: "alice@acme.test", FirstName: "Alice"})
	appendUser(t, env, 1, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-admin", GrantedBy: "user:root"})

	var junction int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM user_roles WHERE tenant_id = $1 AND user_id = 'user-1' AND role_id = 'role-admin'`,
		env.TenantID).Scan(&junction))
	assert.Equal(t, 1, junction)

	var roles []string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT roles FROM users WHERE tenant_id = $1 AND user_id = 'user-1'`, env.TenantID).Scan(&roles))
	assert.Equal(t, []string{"role-admin"}, roles)
}

func TestRoleAssignment_AppliedTwiceStaysSingle(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	appendUser(t, env, 0, userevents.UserCreated,
		userevents.UserCreatedV1{Email: "alice@acme.test"})
	appendUser(t, env, 1, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-admin"})
	appendUser(t, env, 2, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-admin"})

	var roles []string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT roles FROM users WHERE tenant_id = $1 AND user_id = 'user-1'`, env.TenantID).Scan(&roles))
	assert.Equal(t, []string{"role-admin"}, roles, "re-applied assignment must not duplicate the role")
}

func TestRoleRevoke_TombstonesJunctionAndRemovesListEntry(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	appendUser(t, env, 0, userevents.UserCreated,
		userevents.UserCreatedV1{Email: "alice@acme.test"})
	appendUser(t, env, 1, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-admin"})
	appendUser(t, env, 2, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-member"})
	appendUser(t, env, 3, userevents.RoleRevoked,
		userevents.RoleRevokedV1{RoleID: "role-admin"})

	// The junction row survives as a tombstone, not a hard delete.
	var deleted bool
	var revokedAt *time.Time
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT is_deleted, revoked_at FROM user_roles
		  WHERE tenant_id = $1 AND user_id = 'user-1' AND role_id = 'role-admin'`,
		env.TenantID).Scan(&deleted, &revokedAt))
	assert.True(t, deleted)
	assert.NotNil(t, revokedAt)

	var active int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM user_roles
		  WHERE tenant_id = $1 AND user_id = 'user-1' AND NOT is_deleted`,
		env.TenantID).Scan(&active))
	assert.Equal(t, 1, active)

	var roles []string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT roles FROM users WHERE tenant_id = $1 AND user_id = 'user-1'`, env.TenantID).Scan(&roles))
	assert.Equal(t, []string{"role-member"}, roles)
}

func TestRoleReassignAfterRevoke_RevivesTombstonedRow(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	appendUser(t, env, 0, userevents.UserCreated,
		userevents.UserCreatedV1{Email: "alice@acme.test"})
	appendUser(t, env, 1, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-admin"})
	appendUser(t, env, 2, userevents.RoleRevoked,
		userevents.RoleRevokedV1{RoleID: "role-admin"})
	appendUser(t, env, 3, userevents.RoleAssigned,
		userevents.RoleAssignedV1{RoleID: "role-admin", GrantedBy: "user:root"})

	var total int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT count(*) FROM user_roles WHERE tenant_id = $1 AND user_id = 'user-1'`,
		env.TenantID).Scan(&total))
	assert.Equal(t, 1, total, "re-grant must revive the row, not add a second one")

	var deleted bool
	var revokedAt *time.Time
	var grantedBy string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT is_deleted, revoked_at, granted_by FROM user_roles
		  WHERE tenant_id = $1 AND user_id = 'user-1' AND role_id = 'role-admin'`,
		env.TenantID).Scan(&deleted, &revokedAt, &grantedBy))
	assert.False(t, deleted)
	assert.Nil(t, revokedAt)
	assert.Equal(t, "user:root", grantedBy)

	var roles []string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT roles FROM users WHERE tenant_id = $1 AND user_id = 'user-1'`, env.TenantID).Scan(&roles))
	assert.Equal(t, []string{"role-admin"}, roles)
}

func TestUserUpdate_PatchesSuppliedFieldsOnly(t *testing.T) {
	env := itf.Setup(t, modules.BuiltIn()...)
	ctx := env.Ctx()

	appendUser(t, env, 0, userevents.UserCreated,
		userevents.UserCreatedV1{Email: "alice@acme.test", FirstName: "Alice", LastName: "Smith"})

	last := "Jones"
	appendUser(t, env, 1, userevents.UserUpdated, userevents.UserUpdatedV1{LastName: &last})

	var email, first, lastName string
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT email, first_name, last_name FROM users WHERE tenant_id = $1 AND user_id = 'user-1'`,
		env.TenantID).Scan(&email, &first, &lastName))
	assert.Equal(t, "alice@acme.test", email)
	assert.Equal(t, "Alice", first)
	assert.Equal(t, "Jones", lastName)
}
