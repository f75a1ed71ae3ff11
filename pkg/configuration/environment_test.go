package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	tmp := t.TempDir()
	envFile := filepath.Join(tmp, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PROCFLOW_TEST_ENV_LOAD=ok\n"), 0o644))

	t.Cleanup(func() { _ = os.Unsetenv("PROCFLOW_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{envFile, filepath.Join(tmp, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "ok", os.Getenv("PROCFLOW_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	n, err := LoadEnv([]string{filepath.Join(t.TempDir(), ".env")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestConfiguration_Defaults(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.load(nil))

	assert.Equal(t, "localhost", c.Database.Host)
	assert.Equal(t, "5432", c.Database.Port)
	assert.Equal(t, ":8080", c.ServerAddress)
	assert.Equal(t, 1000, c.Outbox.PollIntervalMS)
	assert.NotNil(t, c.Logger())
	assert.Contains(t, c.Database.ConnectionString(), "dbname=procflow")
}
