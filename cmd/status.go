package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rig/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what previous runs installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.LoadState(settings.StateFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if st.Binary != nil {
			fmt.Fprintf(out, "rig %s installed at %s (%s)\n", st.Binary.Version, st.Binary.InstallPath,
				st.Binary.InstalledAt.Format(time.DateTime))
		}
		if len(st.Entries) == 0 {
			fmt.Fprintln(out, "No setup run recorded yet. Run 'rig' to start.")
			return nil
		}
		fmt.Fprintf(out, "Last run: %s\n\n", st.LastRun.Format(time.DateTime))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TOOL\tSTATUS\tUPDATED\tDETAIL")
		for _, name := range st.Names() {
			e := st.Entries[name]
			detail := e.Reason
			if e.Error != "" {
				detail = e.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, e.Status, e.UpdatedAt.Format(time.DateTime), detail)
		}
		return tw.Flush()
	},
}
