package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rig/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Output rig version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "version: %s\n", version.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", version.GitCommit)
		if version.IsPre() {
			fmt.Fprintln(cmd.OutOrStdout(), "channel: prerelease")
		}
	},
}
