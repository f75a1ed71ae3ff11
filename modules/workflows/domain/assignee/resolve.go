package assignee

import "github.com/procflow-hq/procflow/pkg/serrors"

var (
	// Reassigning an identity to itself.
	ErrSameUser  = serrors.NewError("REASSIGN_SAME_USER", "old and new performer are the same user", "")
	ErrSameGroup = serrors.NewError("REASSIGN_SAME_GROUP", "old and new performer are the same group", "")

	// One side of the reassignment has no identity while the other does.
	ErrOldMissing = serrors.NewError("REASSIGN_OLD_MISSING", "old performer is required", "")
	ErrNewMissing = serrors.NewError("REASSIGN_NEW_MISSING", "new performer is required", "")

	// Both the user and the group slot were supplied for one side.
	ErrOldAmbiguous = serrors.NewError("REASSIGN_OLD_AMBIGUOUS", "supply either the old user or the old group, not both", "")
	ErrNewAmbiguous = serrors.NewError("REASSIGN_NEW_AMBIGUOUS", "supply either the new user or the new group, not both", "")
)

// Resolve validates the four optional identity slots and produces exactly one
// old and one new assignee. It is pure: no storage is touched, so every
// rejection happens before any mutation.
func Resolve(oldUserID, oldGroupID, newUserID, newGroupID *int64) (Assignee, Assignee, error) {
	oldAssignee, err := resolveSide(oldUserID, oldGroupID, ErrOldAmbiguous)
	if err != nil {
		return Assignee{}, Assignee{}, err
	}
	newAssignee, err := resolveSide(newUserID, newGroupID, ErrNewAmbiguous)
	if err != nil {
		return Assignee{}, Assignee{}, err
	}

	if oldAssignee.IsZero() {
		return Assignee{}, Assignee{}, ErrOldMissing
	}
	if newAssignee.IsZero() {
		return Assignee{}, Assignee{}, ErrNewMissing
	}

	if oldAssignee.Equal(newAssignee) {
		if oldAssignee.IsUser() {
			return Assignee{}, Assignee{}, ErrSameUser
		}
		return Assignee{}, Assignee{}, ErrSameGroup
	}

	return oldAssignee, newAssignee, nil
}

func resolveSide(userID, groupID *int64, ambiguous error) (Assignee, error) {
	switch {
	case userID != nil && groupID != nil:
		return Assignee{}, ambiguous
	case userID != nil:
		return User(*userID), nil
	case groupID != nil:
		return Group(*groupID), nil
	default:
		return Assignee{}, nil
	}
}
