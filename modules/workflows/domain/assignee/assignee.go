package assignee

import "fmt"

// Kind discriminates the two identity kinds a performer reference can hold.
// The string values match the `type`/`field_type` columns on the reference
// tables.
type Kind string

const (
	KindUser  Kind = "user"
	KindGroup Kind = "group"
)

// Assignee is a tagged union: a reference to either a user or a group, never
// both. The three-column {type, user_id, group_id} wire format exists only at
// the storage boundary; business logic works with this type.
type Assignee struct {
	kind Kind
	id   int64
}

func User(id int64) Assignee {
	return Assignee{kind: KindUser, id: id}
}

func Group(id int64) Assignee {
	return Assignee{kind: KindGroup, id: id}
}

func (a Assignee) Kind() Kind {
	return a.kind
}

func (a Assignee) ID() int64 {
	return a.id
}

func (a Assignee) IsUser() bool {
	return a.kind == KindUser
}

func (a Assignee) IsGroup() bool {
	return a.kind == KindGroup
}

func (a Assignee) IsZero() bool {
	return a.kind == ""
}

func (a Assignee) Equal(other Assignee) bool {
	return a.kind == other.kind && a.id == other.id
}

func (a Assignee) String() string {
	return fmt.Sprintf("%s:%d", a.kind, a.id)
}
