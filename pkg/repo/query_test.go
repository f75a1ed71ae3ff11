package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT 1 FROM t WHERE x = $1", Join("SELECT 1 FROM t", "", "WHERE x = $1"))
	assert.Equal(t, "", Join("", "  "))
}

func TestJoinWhere(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "WHERE a = $1 AND b = $2", JoinWhere("a = $1", "b = $2"))
	assert.Equal(t, "WHERE a = $1", JoinWhere("a = $1", ""))
	assert.Equal(t, "", JoinWhere())
}

func TestInsert(t *testing.T) {
	t.Parallel()

	q := Insert("workflow_owners", []string{"workflow_id", "user_id"})
	assert.Equal(t, "INSERT INTO workflow_owners (workflow_id, user_id) VALUES ($1, $2)", q)

	q = Insert("templates", []string{"account_id", "name"}, "id")
	assert.Equal(t, "INSERT INTO templates (account_id, name) VALUES ($1, $2) RETURNING id", q)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	q := Update("task_performers", []string{"type", "user_id"}, "id = $3")
	assert.Equal(t, "UPDATE task_performers SET type = $1, user_id = $2 WHERE id = $3", q)

	q = Update("tasks", []string{"status"})
	assert.Equal(t, "UPDATE tasks SET status = $1", q)
}

func TestExists(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT EXISTS (SELECT 1 FROM t)", Exists("SELECT 1 FROM t"))
}

func TestFormatLimitOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "LIMIT 10 OFFSET 20", FormatLimitOffset(10, 20))
	assert.Equal(t, "LIMIT 10", FormatLimitOffset(10, 0))
	assert.Equal(t, "OFFSET 20", FormatLimitOffset(0, 20))
	assert.Equal(t, "", FormatLimitOffset(0, 0))
}

func TestBatchInsertQueryN(t *testing.T) {
	t.Parallel()

	q, args := BatchInsertQueryN(
		"INSERT INTO workflow_members (workflow_id, user_id) VALUES",
		[][]any{{1, 10}, {1, 11}, {2, 10}},
	)
	assert.Equal(
		t,
		"INSERT INTO workflow_members (workflow_id, user_id) VALUES ($1, $2), ($3, $4), ($5, $6)",
		q,
	)
	assert.Equal(t, []any{1, 10, 1, 11, 2, 10}, args)

	q, args = BatchInsertQueryN("INSERT INTO x (a) VALUES", nil)
	assert.Equal(t, "INSERT INTO x (a) VALUES", q)
	assert.Nil(t, args)
}
