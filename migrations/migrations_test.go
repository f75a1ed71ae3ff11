package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		raw, err := fs.ReadFile(entry.Name())
		require.NoError(t, err)
		content := string(raw)

		up := strings.Index(content, "-- +goose Up")
		down := strings.Index(content, "-- +goose Down")
		assert.GreaterOrEqual(t, up, 0, "%s: missing up marker", entry.Name())
		assert.Greater(t, down, up, "%s: down must follow up", entry.Name())
	}
}

func TestOutboxMigrationMatchesRelayColumns(t *testing.T) {
	t.Parallel()

	raw, err := fs.ReadFile("00002_workflow_outbox.sql")
	require.NoError(t, err)
	content := string(raw)

	for _, col := range []string{
		"job_id", "sequence", "attempts", "available_at",
		"locked_at", "published_at", "last_error",
	} {
		assert.Contains(t, content, col)
	}
}
