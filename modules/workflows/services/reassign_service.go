package services

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/procflow-hq/procflow/modules/workflows/domain/assignee"
	"github.com/procflow-hq/procflow/modules/workflows/domain/reassignment"
	"github.com/procflow-hq/procflow/pkg/composables"
	"github.com/procflow-hq/procflow/pkg/eventbus"
	"github.com/procflow-hq/procflow/pkg/outbox"
)

// TopicCompletionCheck is the outbox topic of the post-reassignment
// completion-check jobs.
const TopicCompletionCheck = "task.completion_check"

// OutboxTable is where the workflows module enqueues its jobs.
var OutboxTable = pgx.Identifier{"workflow_outbox"}

// ReassignCommand carries the four optional identity slots of a reassignment
// request. Exactly one old slot and one new slot must be set; the resolver
// enforces that.
type ReassignCommand struct {
	OldUserID  *int64
	OldGroupID *int64
	NewUserID  *int64
	NewGroupID *int64
}

// ReassignService redirects every reference to one assignee onto another,
// atomically, across all seven reference tables of the account, then cascades
// owner changes into the derived workflow membership tables and schedules
// completion checks for the users who may have gained completable tasks.
type ReassignService struct {
	repo      reassignment.Repository
	publisher eventbus.EventBusWithError
	outbox    outbox.Publisher
	m         *engineMetrics
}

func NewReassignService(
	repo reassignment.Repository,
	publisher eventbus.EventBusWithError,
	outboxPublisher outbox.Publisher,
) *ReassignService {
	return &ReassignService{
		repo:      repo,
		publisher: publisher,
		outbox:    outboxPublisher,
		m:         getEngineMetrics(),
	}
}

// Reassign resolves the command, rewrites every reference in one transaction
// and publishes the completed event after commit. Validation failures surface
// before any database work; any failure inside the transaction rolls the
// whole rewrite back.
func (s *ReassignService) Reassign(ctx context.Context, cmd ReassignCommand) (*reassignment.RewriteSummary, error) {
	from, to, err := assignee.Resolve(cmd.OldUserID, cmd.OldGroupID, cmd.NewUserID, cmd.NewGroupID)
	if err != nil {
		s.m.reassignTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account from context")
	}

	ctx, span := otel.Tracer("procflow.workflows").Start(ctx, "ReassignService.Reassign")
	defer span.End()
	span.SetAttributes(
		attribute.String("reassign.from", from.String()),
		attribute.String("reassign.to", to.String()),
	)

	summary := &reassignment.RewriteSummary{}
	if err := composables.InTx(ctx, func(txCtx context.Context) error {
		return s.rewriteEverywhere(txCtx, accountID, from, to, summary)
	}); err != nil {
		s.m.reassignTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.recordRewrites(summary)
	s.m.reassignTotal.WithLabelValues("ok").Inc()

	// The rewrite is durable at this point; listener failures are theirs.
	s.publisher.Publish(reassignment.NewCompletedEvent(accountID, from, to, summary))

	return summary, nil
}

// rewriteEverywhere executes the rewrite stages in their required order: the
// in-place rewrites first, then the workflow cascade for the templates whose
// owner set changed, then the predicate rewrites, and finally the
// completion-check jobs that become visible on commit.
func (s *ReassignService) rewriteEverywhere(
	ctx context.Context,
	accountID uuid.UUID,
	from, to assignee.Assignee,
	summary *reassignment.RewriteSummary,
) error {
	var err error

	if summary.RawPerformerTemplates, err = s.repo.RewriteRawPerformerTemplates(ctx, from, to); err != nil {
		return err
	}
	if summary.TemplateOwners, summary.AffectedTemplateIDs, err = s.repo.RewriteTemplateOwners(ctx, from, to); err != nil {
		return err
	}
	if summary.RawPerformers, err = s.repo.RewriteRawPerformers(ctx, from, to); err != nil {
		return err
	}
	if summary.TaskPerformers, err = s.repo.RewriteTaskPerformers(ctx, from, to); err != nil {
		return err
	}

	if len(summary.AffectedTemplateIDs) > 0 {
		if summary.WorkflowMembers, err = s.repo.RefreshWorkflowMembers(ctx, summary.AffectedTemplateIDs); err != nil {
			return err
		}
		if summary.WorkflowOwners, err = s.repo.RefreshWorkflowOwners(ctx, summary.AffectedTemplateIDs); err != nil {
			return err
		}
	} else {
		s.m.cascadeSkips.Inc()
	}

	if summary.PredicateTemplates, err = s.repo.RewritePredicateTemplates(ctx, from, to); err != nil {
		return err
	}
	if summary.Predicates, err = s.repo.RewritePredicates(ctx, from, to); err != nil {
		return err
	}

	checks, err := s.enqueueCompletionChecks(ctx, accountID, to)
	if err != nil {
		return err
	}
	summary.CompletionChecks = checks

	return nil
}

// enqueueCompletionChecks schedules one job per user who now holds the
// rewritten references. A group target fans out to its current members.
func (s *ReassignService) enqueueCompletionChecks(ctx context.Context, accountID uuid.UUID, to assignee.Assignee) (int, error) {
	userIDs := []int64{to.ID()}
	if to.IsGroup() {
		var err error
		userIDs, err = s.repo.GroupMemberIDs(ctx, to.ID())
		if err != nil {
			return 0, errors.Wrap(err, "failed to expand group members")
		}
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	for _, userID := range userIDs {
		payload, err := json.Marshal(completionCheckPayload{
			UserID:      userID,
			AccountID:   accountID,
			IsSuperuser: true,
			AuthType:    AuthTypeSystem,
		})
		if err != nil {
			return 0, errors.Wrap(err, "failed to marshal completion check payload")
		}
		if _, err := s.outbox.Enqueue(ctx, tx, OutboxTable, outbox.Job{
			AccountID: accountID,
			Topic:     TopicCompletionCheck,
			JobID:     uuid.New(),
			Payload:   payload,
		}); err != nil {
			return 0, errors.Wrap(err, "failed to enqueue completion check")
		}
	}

	return len(userIDs), nil
}

func (s *ReassignService) recordRewrites(summary *reassignment.RewriteSummary) {
	for table, count := range map[string]int64{
		"raw_performer_templates": summary.RawPerformerTemplates,
		"template_owners":         summary.TemplateOwners,
		"raw_performers":          summary.RawPerformers,
		"task_performers":         summary.TaskPerformers,
		"workflow_members":        summary.WorkflowMembers,
		"workflow_owners":         summary.WorkflowOwners,
		"predicate_templates":     summary.PredicateTemplates,
		"predicates":              summary.Predicates,
	} {
		s.m.rewriteRows.WithLabelValues(table).Add(float64(count))
	}
}
