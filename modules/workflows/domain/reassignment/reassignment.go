package reassignment

import (
	"context"

	"github.com/procflow-hq/procflow/modules/workflows/domain/assignee"
)

// Repository is the storage boundary of the reassignment engine. Every method
// is scoped to the account carried by the context and runs on the context
// transaction, so the engine can execute the whole rewrite atomically.
type Repository interface {
	// RewriteRawPerformerTemplates redirects template-level intended
	// performers from one assignee to another and reports rows changed.
	RewriteRawPerformerTemplates(ctx context.Context, from, to assignee.Assignee) (int64, error)

	// RewriteTemplateOwners redirects template owners and additionally
	// returns the distinct ids of the templates whose owner set changed,
	// computed from the rewritten rows themselves.
	RewriteTemplateOwners(ctx context.Context, from, to assignee.Assignee) (int64, []int64, error)

	// RewriteRawPerformers redirects workflow-instance intended performers.
	RewriteRawPerformers(ctx context.Context, from, to assignee.Assignee) (int64, error)

	// RewriteTaskPerformers redirects actual task assignments. Performer
	// rows of completed tasks are frozen and never touched.
	RewriteTaskPerformers(ctx context.Context, from, to assignee.Assignee) (int64, error)

	// RefreshWorkflowMembers inserts any missing (workflow, user) membership
	// pairs for the live workflows of the given templates, derived from the
	// current owner set and current task performers with groups expanded to
	// their members. Membership only grows on this path.
	RefreshWorkflowMembers(ctx context.Context, templateIDs []int64) (int64, error)

	// RefreshWorkflowOwners rebuilds the denormalized owner rows for the
	// live workflows of the given templates from the current template owner
	// set, expanding group owners to their current members.
	RefreshWorkflowOwners(ctx context.Context, templateIDs []int64) (int64, error)

	// RewritePredicateTemplates redirects condition operands on template
	// rules. The predicate's field and operator are preserved verbatim.
	RewritePredicateTemplates(ctx context.Context, from, to assignee.Assignee) (int64, error)

	// RewritePredicates does the same for live-workflow rules; the two
	// tables are structurally identical but not linked, so both rewrites
	// run independently.
	RewritePredicates(ctx context.Context, from, to assignee.Assignee) (int64, error)

	// GroupMemberIDs returns the current user ids of an in-account group.
	GroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// RewriteSummary reports how many rows each stage changed. Counts are
// observability data: a repeated reassignment legitimately reports zeros.
type RewriteSummary struct {
	RawPerformerTemplates int64   `json:"raw_performer_templates"`
	TemplateOwners        int64   `json:"template_owners"`
	RawPerformers         int64   `json:"raw_performers"`
	TaskPerformers        int64   `json:"task_performers"`
	WorkflowMembers       int64   `json:"workflow_members"`
	WorkflowOwners        int64   `json:"workflow_owners"`
	PredicateTemplates    int64   `json:"predicate_templates"`
	Predicates            int64   `json:"predicates"`
	AffectedTemplateIDs   []int64 `json:"affected_template_ids"`
	CompletionChecks      int     `json:"completion_checks"`
}

func (s *RewriteSummary) Total() int64 {
	return s.RawPerformerTemplates +
		s.TemplateOwners +
		s.RawPerformers +
		s.TaskPerformers +
		s.WorkflowMembers +
		s.WorkflowOwners +
		s.PredicateTemplates +
		s.Predicates
}
