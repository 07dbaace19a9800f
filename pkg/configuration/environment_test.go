package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaults(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.load(nil))

	assert.Equal(t, "orgledger", c.Database.Name)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.NotEmpty(t, c.Worker.ID)
	assert.Equal(t, 10, c.Worker.BatchSize)
}

func TestDatabaseConnectionString(t *testing.T) {
	d := DatabaseOptions{Name: "db", Host: "h", Port: "5433", User: "u", Password: "p"}
	assert.Equal(t, "host=h port=5433 user=u dbname=db password=p sslmode=disable", d.ConnectionString())
}

func TestLoadEnvMissingFiles(t *testing.T) {
	n, err := LoadEnv([]string{"definitely-not-a-real.env"})
	require.NoError(t, err)
	assert.Zero(t, n)
}
