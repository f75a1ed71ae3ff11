package services

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/procflow-hq/procflow/pkg/composables"
	"github.com/procflow-hq/procflow/pkg/eventbus"
	"github.com/procflow-hq/procflow/pkg/outbox"
)

// AuthTypeSystem marks completion checks triggered by the engine itself
// rather than by a user session.
const AuthTypeSystem = "system"

// CompletionTaskRunner re-evaluates whether a user's tasks became completable.
// The implementation lives with the task execution machinery; the engine only
// triggers it.
type CompletionTaskRunner interface {
	CompleteTasks(ctx context.Context, userID int64, isSuperuser bool, authType string) error
}

type completionCheckPayload struct {
	UserID      int64     `json:"user_id"`
	AccountID   uuid.UUID `json:"account_id"`
	IsSuperuser bool      `json:"is_superuser"`
	AuthType    string    `json:"auth_type"`
}

// CompletionDispatcher routes committed completion-check jobs from the outbox
// relay to the task runner. A returned error lets the relay retry with
// backoff; the rewrite the job came from is already committed either way.
type CompletionDispatcher struct {
	runner CompletionTaskRunner
	log    *logrus.Logger
}

func NewCompletionDispatcher(runner CompletionTaskRunner, log *logrus.Logger) *CompletionDispatcher {
	return &CompletionDispatcher{runner: runner, log: log}
}

func (d *CompletionDispatcher) Dispatch(ctx context.Context, job outbox.DispatchedJob) error {
	if job.Meta.Topic != TopicCompletionCheck {
		if d.log != nil {
			d.log.WithFields(logrus.Fields{
				"topic":  job.Meta.Topic,
				"job_id": job.Meta.JobID,
			}).Warn("skipping job with unknown topic")
		}
		return nil
	}

	var payload completionCheckPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Malformed payloads never become valid; retrying is pointless.
		if d.log != nil {
			d.log.WithError(err).WithField("job_id", job.Meta.JobID).Error("dropping malformed completion check payload")
		}
		return nil
	}

	ctx = composables.WithAccountID(ctx, payload.AccountID)
	if err := d.runner.CompleteTasks(ctx, payload.UserID, payload.IsSuperuser, payload.AuthType); err != nil {
		return errors.Wrap(err, "failed to run completion check")
	}
	return nil
}

// CompletionCheckRequested is the in-process event the production runner
// publishes; the task module subscribes to it.
type CompletionCheckRequested struct {
	UserID      int64
	IsSuperuser bool
	AuthType    string
}

type eventBusTaskRunner struct {
	bus eventbus.EventBusWithError
}

// NewEventBusTaskRunner returns a runner that hands completion checks to
// whoever subscribed on the bus. With no subscriber the check is a no-op,
// which keeps the engine deployable without the task module.
func NewEventBusTaskRunner(bus eventbus.EventBusWithError) CompletionTaskRunner {
	return &eventBusTaskRunner{bus: bus}
}

func (r *eventBusTaskRunner) CompleteTasks(ctx context.Context, userID int64, isSuperuser bool, authType string) error {
	err := r.bus.PublishE(ctx, &CompletionCheckRequested{
		UserID:      userID,
		IsSuperuser: isSuperuser,
		AuthType:    authType,
	})
	if errors.Is(err, eventbus.ErrNoSubscribers) {
		return nil
	}
	return err
}
