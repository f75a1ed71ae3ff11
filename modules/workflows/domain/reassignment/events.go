package reassignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/procflow-hq/procflow/modules/workflows/domain/assignee"
)

// CompletedEvent is published after the rewrite transaction commits.
// Listeners (analytics forwarding, notification formatting) must treat it as
// best-effort: the rewrite is already durable when they run.
type CompletedEvent struct {
	AccountID uuid.UUID
	From      assignee.Assignee
	To        assignee.Assignee
	Summary   *RewriteSummary
	Timestamp time.Time
}

func NewCompletedEvent(accountID uuid.UUID, from, to assignee.Assignee, summary *RewriteSummary) *CompletedEvent {
	return &CompletedEvent{
		AccountID: accountID,
		From:      from,
		To:        to,
		Summary:   summary,
		Timestamp: time.Now(),
	}
}
