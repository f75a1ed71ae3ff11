package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/procflow-hq/procflow/modules/workflows/domain/assignee"
	"github.com/procflow-hq/procflow/modules/workflows/domain/reassignment"
	"github.com/procflow-hq/procflow/pkg/composables"
)

type PgReassignmentRepository struct{}

func NewReassignmentRepository() reassignment.Repository {
	return &PgReassignmentRepository{}
}

// kindColumn maps an assignee kind to the id column that holds it on every
// polymorphic reference table.
func kindColumn(k assignee.Kind) string {
	if k == assignee.KindUser {
		return "user_id"
	}
	return "group_id"
}

// buildPerformerRewrite builds the UPDATE that redirects one account-scoped
// reference table from one assignee to another. When the kinds differ the
// discriminator flips and the vacated id column is cleared; a same-kind
// rewrite only moves the id, the other column is already NULL by invariant.
func buildPerformerRewrite(table string, accountID uuid.UUID, from, to assignee.Assignee) (string, []any) {
	if from.Kind() == to.Kind() {
		col := kindColumn(from.Kind())
		q := fmt.Sprintf(
			`UPDATE %s SET %s = $1 WHERE account_id = $2 AND %s = $3`,
			table, col, col,
		)
		return q, []any{to.ID(), accountID, from.ID()}
	}

	q := fmt.Sprintf(
		`UPDATE %s SET type = $1, %s = $2, %s = NULL WHERE account_id = $3 AND %s = $4`,
		table, kindColumn(to.Kind()), kindColumn(from.Kind()), kindColumn(from.Kind()),
	)
	return q, []any{string(to.Kind()), to.ID(), accountID, from.ID()}
}

// buildTaskPerformerRewrite is the task_performers variant: rows are scoped
// through their owning task, and performer rows of completed tasks are frozen.
func buildTaskPerformerRewrite(accountID uuid.UUID, from, to assignee.Assignee) (string, []any) {
	if from.Kind() == to.Kind() {
		col := kindColumn(from.Kind())
		q := fmt.Sprintf(
			`UPDATE task_performers tp SET %s = $1
			   FROM tasks t
			  WHERE tp.task_id = t.id
			    AND t.account_id = $2
			    AND t.status <> 'completed'
			    AND tp.%s = $3`,
			col, col,
		)
		return q, []any{to.ID(), accountID, from.ID()}
	}

	q := fmt.Sprintf(
		`UPDATE task_performers tp SET type = $1, %s = $2, %s = NULL
		   FROM tasks t
		  WHERE tp.task_id = t.id
		    AND t.account_id = $3
		    AND t.status <> 'completed'
		    AND tp.%s = $4`,
		kindColumn(to.Kind()), kindColumn(from.Kind()), kindColumn(from.Kind()),
	)
	return q, []any{string(to.Kind()), to.ID(), accountID, from.ID()}
}

// buildPredicateRewrite redirects condition operands. field_type doubles as
// the discriminator, so it is rewritten alongside the operand columns, while
// field and operator describe what is being tested and stay untouched.
func buildPredicateRewrite(table string, accountID uuid.UUID, from, to assignee.Assignee) (string, []any) {
	if from.Kind() == to.Kind() {
		col := kindColumn(from.Kind())
		q := fmt.Sprintf(
			`UPDATE %s SET %s = $1 WHERE account_id = $2 AND field_type = $3 AND %s = $4`,
			table, col, col,
		)
		return q, []any{to.ID(), accountID, string(from.Kind()), from.ID()}
	}

	q := fmt.Sprintf(
		`UPDATE %s SET field_type = $1, %s = $2, %s = NULL
		  WHERE account_id = $3 AND field_type = $4 AND %s = $5`,
		table, kindColumn(to.Kind()), kindColumn(from.Kind()), kindColumn(from.Kind()),
	)
	return q, []any{string(to.Kind()), to.ID(), accountID, string(from.Kind()), from.ID()}
}

func (g *PgReassignmentRepository) RewriteRawPerformerTemplates(ctx context.Context, from, to assignee.Assignee) (int64, error) {
	count, err := g.execRewrite(ctx, "raw_performer_templates", from, to)
	if err != nil {
		return 0, errors.Wrap(err, "failed to rewrite raw performer templates")
	}
	return count, nil
}

func (g *PgReassignmentRepository) RewriteRawPerformers(ctx context.Context, from, to assignee.Assignee) (int64, error) {
	count, err := g.execRewrite(ctx, "raw_performers", from, to)
	if err != nil {
		return 0, errors.Wrap(err, "failed to rewrite raw performers")
	}
	return count, nil
}

func (g *PgReassignmentRepository) RewriteTemplateOwners(ctx context.Context, from, to assignee.Assignee) (int64, []int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to get account from context")
	}

	q, args := buildPerformerRewrite("template_owners", accountID, from, to)
	rows, err := tx.Query(ctx, q+" RETURNING template_id", args...)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to rewrite template owners")
	}
	defer rows.Close()

	var count int64
	seen := make(map[int64]struct{})
	var templateIDs []int64
	for rows.Next() {
		var templateID int64
		if err := rows.Scan(&templateID); err != nil {
			return 0, nil, errors.Wrap(err, "failed to scan template id")
		}
		count++
		if _, ok := seen[templateID]; !ok {
			seen[templateID] = struct{}{}
			templateIDs = append(templateIDs, templateID)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, errors.Wrap(err, "row iteration error")
	}

	return count, templateIDs, nil
}

func (g *PgReassignmentRepository) RewriteTaskPerformers(ctx context.Context, from, to assignee.Assignee) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get account from context")
	}

	q, args := buildTaskPerformerRewrite(accountID, from, to)
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to rewrite task performers")
	}
	return tag.RowsAffected(), nil
}

func (g *PgReassignmentRepository) RewritePredicateTemplates(ctx context.Context, from, to assignee.Assignee) (int64, error) {
	count, err := g.execPredicateRewrite(ctx, "predicate_templates", from, to)
	if err != nil {
		return 0, errors.Wrap(err, "failed to rewrite predicate templates")
	}
	return count, nil
}

func (g *PgReassignmentRepository) RewritePredicates(ctx context.Context, from, to assignee.Assignee) (int64, error) {
	count, err := g.execPredicateRewrite(ctx, "predicates", from, to)
	if err != nil {
		return 0, errors.Wrap(err, "failed to rewrite predicates")
	}
	return count, nil
}

func (g *PgReassignmentRepository) execRewrite(ctx context.Context, table string, from, to assignee.Assignee) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get account from context")
	}

	q, args := buildPerformerRewrite(table, accountID, from, to)
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (g *PgReassignmentRepository) execPredicateRewrite(ctx context.Context, table string, from, to assignee.Assignee) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	accountID, err := composables.UseAccountID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get account from context")
	}

	q, args := buildPredicateRewrite(table, accountID, from, to)
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
