package outbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job is the unit stored in an outbox table. JobID deduplicates enqueues:
// inserting the same JobID twice is a no-op.
type Job struct {
	AccountID uuid.UUID
	Topic     string
	JobID     uuid.UUID
	Payload   json.RawMessage
}

// Meta is the stable dispatch metadata delivered alongside the payload.
type Meta struct {
	Table     pgx.Identifier
	AccountID uuid.UUID
	Topic     string
	JobID     uuid.UUID
	Sequence  int64
	Attempts  int
}

// DispatchedJob is the unit delivered by Relay to a Dispatcher.
type DispatchedJob struct {
	Meta    Meta
	Payload json.RawMessage
}

// Dispatcher executes a claimed job. A returned error schedules a retry with
// backoff until the job goes dead.
type Dispatcher interface {
	Dispatch(ctx context.Context, job DispatchedJob) error
}
