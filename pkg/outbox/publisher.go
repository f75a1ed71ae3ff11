package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/procflow-hq/procflow/pkg/repo"
)

// Publisher enqueues jobs inside the caller's transaction, so a job becomes
// visible to the relay only when the surrounding unit of work commits.
type Publisher interface {
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, job Job) (sequence int64, err error)
}

type publisher struct {
	m *metrics
}

func NewPublisher() Publisher {
	return &publisher{m: getMetrics()}
}

func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, job Job) (int64, error) {
	if job.AccountID == uuid.Nil {
		return 0, fmt.Errorf("%w: account_id is required", ErrInvalidConfig)
	}
	if job.JobID == uuid.Nil {
		return 0, fmt.Errorf("%w: job_id is required", ErrInvalidConfig)
	}
	if job.Topic == "" {
		return 0, fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	}
	if len(table) == 0 {
		return 0, fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (account_id, topic, payload, job_id, available_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (job_id) DO UPDATE SET job_id = EXCLUDED.job_id
		 RETURNING sequence`,
		table.Sanitize(),
	)

	var sequence int64
	if err := tx.QueryRow(ctx, q, job.AccountID, job.Topic, job.Payload, job.JobID).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("outbox enqueue: %w", err)
	}

	p.m.enqueueTotal.WithLabelValues(tableLabel(table), job.Topic).Inc()

	return sequence, nil
}

func tableLabel(table pgx.Identifier) string {
	if len(table) == 0 {
		return ""
	}
	return table[len(table)-1]
}
