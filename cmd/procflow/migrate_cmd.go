package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/procflow-hq/procflow/migrations"
	"github.com/procflow-hq/procflow/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back schema migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) > 0 {
				direction = args[0]
			}

			dsn := configuration.Use().Database.ConnectionString()
			switch direction {
			case "up":
				return migrations.Up(cmd.Context(), dsn)
			case "down":
				return migrations.Down(cmd.Context(), dsn)
			default:
				return fmt.Errorf("unknown direction %q, want up or down", direction)
			}
		},
	}
	return cmd
}
