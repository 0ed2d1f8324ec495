package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buildtrack/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trackctl",
		Short: "trackctl - maintenance tool for the BuildTrack database",
		Long: `trackctl runs operator tasks against the BuildTrack database without
going through the HTTP API: schema migration, schedule import and export,
and one-off data fixes.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ImportCmd())
	rootCmd.AddCommand(cli.ExportCmd())
	rootCmd.AddCommand(cli.FixStatusesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
