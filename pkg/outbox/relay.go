package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Relay polls an outbox table and hands committed jobs to a Dispatcher.
// Delivery is at-least-once: a job is acked only after a successful dispatch,
// failed dispatches are retried with exponential backoff until MaxAttempts.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       RelayOptions

	m          *metrics
	tableLabel string
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}

	opts.setDefaults()

	return &Relay{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		m:          getMetrics(),
		tableLabel: tableLabel(table),
	}, nil
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := r.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

type claimed struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Topic     string
	Payload   []byte
	JobID     uuid.UUID
	Sequence  int64
	Attempts  int
}

func (r *Relay) processOnce(ctx context.Context) error {
	now := time.Now()

	jobs, err := r.claim(ctx, now, now.Add(-r.opts.LockTTL))
	if err != nil {
		return err
	}

	for _, c := range jobs {
		dispatchCtx := ctx
		var cancel func()
		if r.opts.DispatchTimeout > 0 {
			dispatchCtx, cancel = context.WithTimeout(ctx, r.opts.DispatchTimeout)
		}

		start := time.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, DispatchedJob{
			Meta: Meta{
				Table:     r.table,
				AccountID: c.AccountID,
				Topic:     c.Topic,
				JobID:     c.JobID,
				Sequence:  c.Sequence,
				Attempts:  c.Attempts,
			},
			Payload: c.Payload,
		})
		if cancel != nil {
			cancel()
		}

		latency := time.Since(start)
		if err == nil {
			r.recordDispatch(c.Topic, "success", latency)
			if ackErr := r.ack(ctx, c.ID); ackErr != nil {
				r.opts.Logger.WithError(ackErr).WithField("job_id", c.JobID).Warn("outbox: ack failed")
			}
			continue
		}

		r.recordDispatch(c.Topic, "failure", latency)
		lastErr := truncateError(err, r.opts.LastErrorMaxLen)

		if c.Attempts >= r.opts.MaxAttempts {
			r.m.deadTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
			if deadErr := r.dead(ctx, c.ID, lastErr); deadErr != nil {
				r.opts.Logger.WithError(deadErr).WithField("job_id", c.JobID).Warn("outbox: dead update failed")
			}
			continue
		}

		next := time.Now().Add(backoff(c.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		if nackErr := r.nack(ctx, c.ID, lastErr, next); nackErr != nil {
			r.opts.Logger.WithError(nackErr).WithField("job_id", c.JobID).Warn("outbox: nack failed")
		}
	}

	return nil
}

func (r *Relay) claim(ctx context.Context, now, lockCutoff time.Time) ([]claimed, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tableName := r.table.Sanitize()
	q := fmt.Sprintf(
		`SELECT id, account_id, topic, payload, job_id, sequence, attempts
		   FROM %s
		  WHERE published_at IS NULL
		    AND available_at <= $1
		    AND attempts < $2
		    AND (locked_at IS NULL OR locked_at < $3)
		  ORDER BY available_at, sequence
		  LIMIT $4
		  FOR UPDATE SKIP LOCKED`,
		tableName,
	)
	rows, err := tx.Query(ctx, q, now, r.opts.MaxAttempts, lockCutoff, r.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("outbox claim select: %w", err)
	}
	defer rows.Close()

	var items []claimed
	var ids []uuid.UUID
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Topic, &c.Payload, &c.JobID, &c.Sequence, &c.Attempts); err != nil {
			return nil, fmt.Errorf("outbox claim scan: %w", err)
		}
		c.Attempts++
		items = append(items, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox claim rows: %w", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	update := fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, tableName)
	if _, err := tx.Exec(ctx, update, now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
		return nil, fmt.Errorf("outbox claim update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Relay) ack(ctx context.Context, id uuid.UUID) error {
	q := fmt.Sprintf(
		`UPDATE %s
		    SET published_at = now(),
		        locked_at = NULL,
		        last_error = NULL
		  WHERE id = $1 AND published_at IS NULL`,
		r.table.Sanitize(),
	)
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("outbox ack: %w", err)
	}
	return nil
}

func (r *Relay) nack(ctx context.Context, id uuid.UUID, lastError string, nextAvailable time.Time) error {
	q := fmt.Sprintf(
		`UPDATE %s
		    SET locked_at = NULL,
		        last_error = $2,
		        available_at = $3
		  WHERE id = $1 AND published_at IS NULL`,
		r.table.Sanitize(),
	)
	if _, err := r.pool.Exec(ctx, q, id, lastError, nextAvailable); err != nil {
		return fmt.Errorf("outbox nack: %w", err)
	}
	return nil
}

func (r *Relay) dead(ctx context.Context, id uuid.UUID, lastError string) error {
	q := fmt.Sprintf(
		`UPDATE %s
		    SET locked_at = NULL,
		        last_error = $2,
		        available_at = now()
		  WHERE id = $1 AND published_at IS NULL`,
		r.table.Sanitize(),
	)
	if _, err := r.pool.Exec(ctx, q, id, lastError); err != nil {
		return fmt.Errorf("outbox dead: %w", err)
	}
	return nil
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, topic, result).Observe(latency.Seconds())
}
