package orchestrator

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

// maxMsg bounds the error text shown per row; the full text is in the log.
const maxMsg = 50

// PrintSummary writes the installation summary table and totals.
func PrintSummary(w io.Writer, res Result, logPath string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Installation Summary"))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tSTATUS\tMESSAGE")
	for _, o := range res.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Entry, statusCell(o.Status), message(o))
	}
	_ = tw.Flush()

	succeeded, failed, skipped := res.Counts()
	fmt.Fprintf(w, "\n%s  %s  %s  Total: %d\n",
		green(fmt.Sprintf("✓ Successful: %d", succeeded)),
		red(fmt.Sprintf("✗ Failed: %d", failed)),
		faint(fmt.Sprintf("Skipped: %d", skipped)),
		len(res.Outcomes))

	fmt.Fprintf(w, "\nLog file: %s\n", logPath)
	if succeeded > 0 {
		fmt.Fprintln(w, "Restart your shell or run 'source ~/.bashrc' (or ~/.zshrc) to pick up new tools.")
	}
}

func statusCell(s Status) string {
	switch s {
	case Succeeded:
		return green("✓ Success")
	case Failed:
		return red("✗ Failed")
	default:
		return faint(s.String())
	}
}

func message(o Outcome) string {
	switch {
	case o.Err != nil:
		return truncate(o.Err.Error(), maxMsg)
	case o.Reason != "":
		return o.Reason
	case o.Status == Succeeded:
		return "installed"
	default:
		return ""
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
