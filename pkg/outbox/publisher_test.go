package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Enqueue_Validation(t *testing.T) {
	t.Parallel()

	p := NewPublisher()
	ctx := context.Background()
	table := pgx.Identifier{"workflow_outbox"}

	valid := Job{
		AccountID: uuid.New(),
		Topic:     "task.completion_check",
		JobID:     uuid.New(),
		Payload:   []byte(`{}`),
	}

	t.Run("Missing_Account", func(t *testing.T) {
		job := valid
		job.AccountID = uuid.Nil
		_, err := p.Enqueue(ctx, nil, table, job)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Missing_JobID", func(t *testing.T) {
		job := valid
		job.JobID = uuid.Nil
		_, err := p.Enqueue(ctx, nil, table, job)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Missing_Topic", func(t *testing.T) {
		job := valid
		job.Topic = ""
		_, err := p.Enqueue(ctx, nil, table, job)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Missing_Table", func(t *testing.T) {
		_, err := p.Enqueue(ctx, nil, pgx.Identifier{}, valid)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNewRelay_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRelay(nil, pgx.Identifier{"workflow_outbox"}, nil, RelayOptions{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTableLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "workflow_outbox", tableLabel(pgx.Identifier{"public", "workflow_outbox"}))
	assert.Equal(t, "", tableLabel(pgx.Identifier{}))
}
