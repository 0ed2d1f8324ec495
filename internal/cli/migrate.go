package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"buildtrack/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if err := database.Migrate(e.db); err != nil {
				return err
			}
			fmt.Printf("%s schema up to date (%s)\n", okMark, e.cfg.DBDriver)
			return nil
		},
	}
}
