package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow-hq/procflow/modules/workflows/domain/assignee"
	"github.com/procflow-hq/procflow/modules/workflows/domain/reassignment"
	"github.com/procflow-hq/procflow/modules/workflows/services"
	"github.com/procflow-hq/procflow/pkg/composables"
	"github.com/procflow-hq/procflow/pkg/eventbus"
	"github.com/procflow-hq/procflow/pkg/outbox"
	"github.com/procflow-hq/procflow/pkg/repo"
)

// stubTx satisfies the transaction surface so the service believes it runs
// inside a unit of work; the mocked repository never touches it.
type stubTx struct{}

func (stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (stubTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }

type mockRepository struct {
	calls []string

	counts       map[string]int64
	templateIDs  []int64
	groupMembers []int64
	failOn       string
}

var errStageFailed = errors.New("stage failed")

func (m *mockRepository) stage(name string) (int64, error) {
	m.calls = append(m.calls, name)
	if m.failOn == name {
		return 0, errStageFailed
	}
	return m.counts[name], nil
}

func (m *mockRepository) RewriteRawPerformerTemplates(_ context.Context, _, _ assignee.Assignee) (int64, error) {
	return m.stage("raw_performer_templates")
}

func (m *mockRepository) RewriteTemplateOwners(_ context.Context, _, _ assignee.Assignee) (int64, []int64, error) {
	n, err := m.stage("template_owners")
	return n, m.templateIDs, err
}

func (m *mockRepository) RewriteRawPerformers(_ context.Context, _, _ assignee.Assignee) (int64, error) {
	return m.stage("raw_performers")
}

func (m *mockRepository) RewriteTaskPerformers(_ context.Context, _, _ assignee.Assignee) (int64, error) {
	return m.stage("task_performers")
}

func (m *mockRepository) RefreshWorkflowMembers(_ context.Context, templateIDs []int64) (int64, error) {
	return m.stage("workflow_members")
}

func (m *mockRepository) RefreshWorkflowOwners(_ context.Context, templateIDs []int64) (int64, error) {
	return m.stage("workflow_owners")
}

func (m *mockRepository) RewritePredicateTemplates(_ context.Context, _, _ assignee.Assignee) (int64, error) {
	return m.stage("predicate_templates")
}

func (m *mockRepository) RewritePredicates(_ context.Context, _, _ assignee.Assignee) (int64, error) {
	return m.stage("predicates")
}

func (m *mockRepository) GroupMemberIDs(_ context.Context, _ int64) ([]int64, error) {
	m.calls = append(m.calls, "group_members")
	return m.groupMembers, nil
}

type recordingOutbox struct {
	jobs []outbox.Job
}

func (r *recordingOutbox) Enqueue(_ context.Context, _ repo.Tx, _ pgx.Identifier, job outbox.Job) (int64, error) {
	r.jobs = append(r.jobs, job)
	return int64(len(r.jobs)), nil
}

func ptr(v int64) *int64 { return &v }

func testContext(accountID uuid.UUID) context.Context {
	ctx := composables.WithAccountID(context.Background(), accountID)
	return composables.WithTx(ctx, stubTx{})
}

func TestReassignService_Reassign(t *testing.T) {
	t.Parallel()

	accountID := uuid.New()

	t.Run("Validation_Fails_Before_Any_Database_Work", func(t *testing.T) {
		repo := &mockRepository{}
		svc := services.NewReassignService(repo, eventbus.NewEventPublisher(logrus.New()), &recordingOutbox{})

		_, err := svc.Reassign(testContext(accountID), services.ReassignCommand{
			OldUserID: ptr(3),
			NewUserID: ptr(3),
		})
		require.ErrorIs(t, err, assignee.ErrSameUser)
		assert.Empty(t, repo.calls)
	})

	t.Run("Executes_Stages_In_Order", func(t *testing.T) {
		repo := &mockRepository{
			counts: map[string]int64{
				"raw_performer_templates": 2,
				"template_owners":         1,
				"raw_performers":          3,
				"task_performers":         4,
				"workflow_members":        5,
				"workflow_owners":         6,
				"predicate_templates":     1,
				"predicates":              2,
			},
			templateIDs: []int64{11, 12},
		}
		bus := eventbus.NewEventPublisher(logrus.New())
		var published []*reassignment.CompletedEvent
		bus.Subscribe(func(e *reassignment.CompletedEvent) {
			published = append(published, e)
		})
		ob := &recordingOutbox{}
		svc := services.NewReassignService(repo, bus, ob)

		summary, err := svc.Reassign(testContext(accountID), services.ReassignCommand{
			OldUserID: ptr(3),
			NewUserID: ptr(4),
		})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"raw_performer_templates",
			"template_owners",
			"raw_performers",
			"task_performers",
			"workflow_members",
			"workflow_owners",
			"predicate_templates",
			"predicates",
		}, repo.calls)

		assert.Equal(t, int64(2), summary.RawPerformerTemplates)
		assert.Equal(t, int64(1), summary.TemplateOwners)
		assert.Equal(t, int64(3), summary.RawPerformers)
		assert.Equal(t, int64(4), summary.TaskPerformers)
		assert.Equal(t, int64(5), summary.WorkflowMembers)
		assert.Equal(t, int64(6), summary.WorkflowOwners)
		assert.Equal(t, []int64{11, 12}, summary.AffectedTemplateIDs)
		assert.Equal(t, int64(24), summary.Total())

		require.Len(t, ob.jobs, 1)
		job := ob.jobs[0]
		assert.Equal(t, services.TopicCompletionCheck, job.Topic)
		assert.Equal(t, accountID, job.AccountID)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(job.Payload, &payload))
		assert.Equal(t, float64(4), payload["user_id"])
		assert.Equal(t, accountID.String(), payload["account_id"])
		assert.Equal(t, true, payload["is_superuser"])
		assert.Equal(t, services.AuthTypeSystem, payload["auth_type"])

		require.Len(t, published, 1)
		assert.Equal(t, accountID, published[0].AccountID)
		assert.Equal(t, assignee.User(3), published[0].From)
		assert.Equal(t, assignee.User(4), published[0].To)
		assert.Equal(t, summary, published[0].Summary)
	})

	t.Run("Cascade_Skipped_When_No_Owner_Rows_Changed", func(t *testing.T) {
		repo := &mockRepository{counts: map[string]int64{}}
		svc := services.NewReassignService(repo, eventbus.NewEventPublisher(logrus.New()), &recordingOutbox{})

		summary, err := svc.Reassign(testContext(accountID), services.ReassignCommand{
			OldGroupID: ptr(9),
			NewGroupID: ptr(10),
		})
		require.NoError(t, err)

		assert.NotContains(t, repo.calls, "workflow_members")
		assert.NotContains(t, repo.calls, "workflow_owners")
		assert.Contains(t, repo.calls, "predicate_templates")
		assert.Zero(t, summary.WorkflowMembers)
		assert.Zero(t, summary.WorkflowOwners)
	})

	t.Run("Group_Target_Fans_Out_To_Members", func(t *testing.T) {
		repo := &mockRepository{
			counts:       map[string]int64{},
			groupMembers: []int64{7, 8, 9},
		}
		ob := &recordingOutbox{}
		svc := services.NewReassignService(repo, eventbus.NewEventPublisher(logrus.New()), ob)

		summary, err := svc.Reassign(testContext(accountID), services.ReassignCommand{
			OldUserID:  ptr(3),
			NewGroupID: ptr(20),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, summary.CompletionChecks)

		require.Len(t, ob.jobs, 3)
		var userIDs []int64
		for _, job := range ob.jobs {
			var payload struct {
				UserID int64 `json:"user_id"`
			}
			require.NoError(t, json.Unmarshal(job.Payload, &payload))
			userIDs = append(userIDs, payload.UserID)
		}
		assert.Equal(t, []int64{7, 8, 9}, userIDs)
	})

	t.Run("Stage_Failure_Surfaces_And_Skips_Event", func(t *testing.T) {
		repo := &mockRepository{
			counts: map[string]int64{},
			failOn: "task_performers",
		}
		bus := eventbus.NewEventPublisher(logrus.New())
		var published int
		bus.Subscribe(func(e *reassignment.CompletedEvent) { published++ })
		ob := &recordingOutbox{}
		svc := services.NewReassignService(repo, bus, ob)

		_, err := svc.Reassign(testContext(accountID), services.ReassignCommand{
			OldUserID: ptr(3),
			NewUserID: ptr(4),
		})
		require.ErrorIs(t, err, errStageFailed)
		assert.Zero(t, published)
		assert.Empty(t, ob.jobs)
		assert.NotContains(t, repo.calls, "predicate_templates")
	})
}
