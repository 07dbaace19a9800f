// Package itf holds the integration test fixture. Tests opt in by setting
// ORGLEDGER_TEST_DSN; without it every integration test skips.
package itf

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgledger/migrations"
	"github.com/iota-uz/orgledger/pkg/application"
	"github.com/iota-uz/orgledger/pkg/composables"
)

const DSNEnv = "ORGLEDGER_TEST_DSN"

// TestEnvironment is one migrated database plus a loaded application. The
// schema is dropped and recreated per environment, so tests never see each
// other's rows.
type TestEnvironment struct {
	Pool     *pgxpool.Pool
	App      *application.Application
	TenantID uuid.UUID
}

// Setup skips unless ORGLEDGER_TEST_DSN is set, resets the public schema,
// applies all migrations and loads the given modules.
func Setup(tb testing.TB, mods ...application.Module) *TestEnvironment {
	tb.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		tb.Skipf("set %s to run integration tests", DSNEnv)
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", dsn)
	require.NoError(tb, err)
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public`)
	require.NoError(tb, err)

	goose.SetBaseFS(migrations.FS)
	require.NoError(tb, goose.SetDialect("postgres"))
	require.NoError(tb, goose.UpContext(ctx, db, "."))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(tb, err)
	tb.Cleanup(pool.Close)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	app := application.New(pool, log)
	require.NoError(tb, app.Load(mods...))

	return &TestEnvironment{
		Pool:     pool,
		App:      app,
		TenantID: uuid.New(),
	}
}

// Ctx returns a context bound to the environment's pool and tenant, the
// shape every store and repository call expects.
func (e *TestEnvironment) Ctx() context.Context {
	ctx := composables.WithPool(context.Background(), e.Pool)
	return composables.WithTenantID(ctx, e.TenantID)
}

// CtxFor is Ctx for another tenant.
func (e *TestEnvironment) CtxFor(tenantID uuid.UUID) context.Context {
	ctx := composables.WithPool(context.Background(), e.Pool)
	return composables.WithTenantID(ctx, tenantID)
}
