package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"buildtrack/internal/repository"
)

// FixStatusesCmd returns the fix-statuses command
func FixStatusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-statuses",
		Short: "Rewrite legacy \"pending\" assignments to \"assigned\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			n, err := repository.NewAssignmentRepository(e.db).NormalizeLegacyStatus(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println(warnText("no legacy assignments found"))
				return nil
			}
			fmt.Printf("%s updated %d assignments\n", okMark, n)
			return nil
		},
	}
}
