package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/procflow-hq/procflow/pkg/constants"
)

var ErrNoAccountID = errors.New("no account id found in context")

// Every query the engine issues is scoped to exactly one account; the account
// id is threaded through the context the same way the transaction is.
func WithAccountID(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.AccountIDKey, accountID)
}

func UseAccountID(ctx context.Context) (uuid.UUID, error) {
	accountID, ok := ctx.Value(constants.AccountIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoAccountID
	}
	return accountID, nil
}
