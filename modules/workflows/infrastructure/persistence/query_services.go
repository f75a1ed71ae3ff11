package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/procflow-hq/procflow/pkg/composables"
)

// derefOwnersQuery flattens the current owner set of the given templates to
// (template_id, user_id) pairs. Group owners expand to their members at query
// time, so membership changes between cascades are always picked up.
const derefOwnersQuery = `
		SELECT tow.template_id, tow.user_id
		  FROM template_owners tow
		 WHERE tow.account_id = $1
		   AND tow.type = 'user'
		   AND tow.template_id = ANY($2::bigint[])
		UNION
		SELECT tow.template_id, gu.user_id
		  FROM template_owners tow
		  JOIN group_users gu ON gu.group_id = tow.group_id
		 WHERE tow.account_id = $1
		   AND tow.type = 'group'
		   AND tow.template_id = ANY($2::bigint[])`

// taskPerformerUsersQuery flattens the current (non-removed) task performers
// of the given templates' live workflows to (workflow_id, user_id) pairs.
const taskPerformerUsersQuery = `
		SELECT t.workflow_id, tp.user_id
		  FROM task_performers tp
		  JOIN tasks t ON t.id = tp.task_id
		  JOIN workflows w ON w.id = t.workflow_id
		 WHERE w.account_id = $1
		   AND w.status <> 'deleted'
		   AND w.template_id = ANY($2::bigint[])
		   AND tp.type = 'user'
		   AND tp.directly_status <> 'deleted'
		UNION
		SELECT t.workflow_id, gu.user_id
		  FROM task_performers tp
		  JOIN tasks t ON t.id = tp.task_id
		  JOIN workflows w ON w.id = t.workflow_id
		  JOIN group_users gu ON gu.group_id = tp.group_id
		 WHERE w.account_id = $1
		   AND w.status <> 'deleted'
		   AND w.template_id = ANY($2::bigint[])
		   AND tp.type = 'group'
		   AND tp.directly_status <> 'deleted'`

const workflowOwnersDeleteQuery = `
		DELETE FROM workflow_owners wo
		 USING workflows w
		 WHERE wo.workflow_id = w.id
		   AND w.account_id = $1
		   AND w.status <> 'deleted'
		   AND w.template_id = ANY($2::bigint[])`

const workflowOwnersInsertQuery = `
		INSERT INTO workflow_owners (workflow_id, user_id)
		SELECT DISTINCT w.id, d.user_id
		  FROM workflows w
		  JOIN (` + derefOwnersQuery + `
		  ) d ON d.template_id = w.template_id
		 WHERE w.account_id = $1
		   AND w.status <> 'deleted'
		ON CONFLICT (workflow_id, user_id) DO NOTHING`

const workflowMembersInsertQuery = `
		INSERT INTO workflow_members (workflow_id, user_id)
		SELECT w.id, d.user_id
		  FROM workflows w
		  JOIN (` + derefOwnersQuery + `
		  ) d ON d.template_id = w.template_id
		 WHERE w.account_id = $1
		   AND w.status <> 'deleted'
		UNION
		` + taskPerformerUsersQuery + `
		ON CONFLICT (workflow_id, user_id) DO NOTHING`

const groupMemberIDsQuery = `
		SELECT gu.user_id
		  FROM group_users gu
		  JOIN groups g ON g.id = gu.group_id
		 WHERE g.account_id = $1
		   AND gu.group_id = $2
		 ORDER BY gu.user_id`

// RefreshWorkflowOwners rebuilds the denormalized owner rows of the live
// workflows of the given templates: the stale set is deleted wholesale and
// re-derived from the current template owners.
func (g *PgReassignmentRepository) RefreshWorkflowOwners(ctx context.Context, templateIDs []int64) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get account from context")
	}

	if _, err := tx.Exec(ctx, workflowOwnersDeleteQuery, accountID, templateIDs); err != nil {
		return 0, errors.Wrap(err, "failed to delete stale workflow owners")
	}
	tag, err := tx.Exec(ctx, workflowOwnersInsertQuery, accountID, templateIDs)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert workflow owners")
	}
	return tag.RowsAffected(), nil
}

// RefreshWorkflowMembers only ever adds rows: a member who entered via a
// group keeps membership even after leaving the group. Removal happens
// through task-performer removal elsewhere, never on this path.
func (g *PgReassignmentRepository) RefreshWorkflowMembers(ctx context.Context, templateIDs []int64) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get account from context")
	}

	tag, err := tx.Exec(ctx, workflowMembersInsertQuery, accountID, templateIDs)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert workflow members")
	}
	return tag.RowsAffected(), nil
}

func (g *PgReassignmentRepository) GroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account from context")
	}

	rows, err := tx.Query(ctx, groupMemberIDsQuery, accountID, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query group members")
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.Wrap(err, "failed to scan group member id")
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return userIDs, nil
}
