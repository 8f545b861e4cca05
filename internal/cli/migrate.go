package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"postflow/internal/database/migration"
)

func newMigrateCommand(e *Env) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		Long: `Create the users and posts tables and their indexes. Nothing is
changed when the schema is already present.

Examples:
  postflowctl migrate
  postflowctl migrate --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				for i, name := range migration.Steps() {
					fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, name)
				}
				return nil
			}
			if err := e.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print the migration steps without running them")
	return cmd
}
