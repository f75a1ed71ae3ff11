package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/procflow-hq/procflow/pkg/composables"
	"github.com/procflow-hq/procflow/pkg/configuration"
	"github.com/procflow-hq/procflow/pkg/repo"
)

// newSeedCmd loads a small demo dataset: one account with users, a group, a
// template with owners and a live workflow, enough to exercise a
// reassignment end to end.
func newSeedCmd() *cobra.Command {
	var accountName string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo dataset for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()

			pool, err := pgxpool.New(cmd.Context(), conf.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			return composables.InTx(ctx, func(txCtx context.Context) error {
				return seedDemoData(txCtx, accountName)
			})
		},
	}

	cmd.Flags().StringVar(&accountName, "account", "demo", "name of the demo account")
	return cmd
}

func seedDemoData(ctx context.Context, accountName string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var accountID uuid.UUID
	q := repo.Insert("accounts", []string{"name"}, "id")
	if err := tx.QueryRow(ctx, q, accountName).Scan(&accountID); err != nil {
		return fmt.Errorf("seed account: %w", err)
	}

	userQ, userArgs := repo.BatchInsertQueryN(
		"INSERT INTO users (account_id, email, name) VALUES",
		[][]any{
			{accountID, "alice@example.com", "Alice"},
			{accountID, "bob@example.com", "Bob"},
			{accountID, "carol@example.com", "Carol"},
		},
	)
	if _, err := tx.Exec(ctx, userQ, userArgs...); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	userIDs, err := scanIDs(ctx, tx, "SELECT id FROM users WHERE account_id = $1 ORDER BY id", accountID)
	if err != nil {
		return err
	}

	var groupID int64
	q = repo.Insert("groups", []string{"account_id", "name"}, "id")
	if err := tx.QueryRow(ctx, q, accountID, "reviewers").Scan(&groupID); err != nil {
		return fmt.Errorf("seed group: %w", err)
	}

	memberRows := make([][]any, 0, len(userIDs))
	for _, userID := range userIDs[1:] {
		memberRows = append(memberRows, []any{groupID, userID})
	}
	memberQ, memberArgs := repo.BatchInsertQueryN("INSERT INTO group_users (group_id, user_id) VALUES", memberRows)
	if _, err := tx.Exec(ctx, memberQ, memberArgs...); err != nil {
		return fmt.Errorf("seed group members: %w", err)
	}

	var templateID int64
	q = repo.Insert("templates", []string{"account_id", "name"}, "id")
	if err := tx.QueryRow(ctx, q, accountID, "onboarding").Scan(&templateID); err != nil {
		return fmt.Errorf("seed template: %w", err)
	}

	ownerQ, ownerArgs := repo.BatchInsertQueryN(
		"INSERT INTO template_owners (account_id, template_id, type, user_id, group_id) VALUES",
		[][]any{
			{accountID, templateID, "user", userIDs[0], nil},
			{accountID, templateID, "group", nil, groupID},
		},
	)
	if _, err := tx.Exec(ctx, ownerQ, ownerArgs...); err != nil {
		return fmt.Errorf("seed template owners: %w", err)
	}

	var workflowID int64
	q = repo.Insert("workflows", []string{"account_id", "template_id", "name"}, "id")
	if err := tx.QueryRow(ctx, q, accountID, templateID, "onboarding #1").Scan(&workflowID); err != nil {
		return fmt.Errorf("seed workflow: %w", err)
	}

	var taskID int64
	q = repo.Insert("tasks", []string{"account_id", "workflow_id", "name"}, "id")
	if err := tx.QueryRow(ctx, q, accountID, workflowID, "prepare accounts").Scan(&taskID); err != nil {
		return fmt.Errorf("seed task: %w", err)
	}

	q = repo.Insert("task_performers", []string{"task_id", "type", "user_id"})
	if _, err := tx.Exec(ctx, q, taskID, "user", userIDs[0]); err != nil {
		return fmt.Errorf("seed task performer: %w", err)
	}

	fmt.Printf("seeded account %s (%s)\n", accountName, accountID)
	return nil
}

func scanIDs(ctx context.Context, tx repo.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
