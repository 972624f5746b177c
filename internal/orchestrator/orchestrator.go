// Package orchestrator walks the tool catalog: it runs the bootstrap entry, asks about
// every other entry in order and runs the ones the user selects.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rig/internal/catalog"
	"rig/internal/logger"
	"rig/internal/rigerr"
	"rig/internal/runner"
	"rig/internal/version"
)

// shownTools bounds how many catalog names the bootstrap failure message lists.
const shownTools = 5

// Status is the state of one catalog entry during a run.
type Status int

const (
	Pending Status = iota
	Asked
	Skipped
	Running
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Asked:
		return "asked"
	case Skipped:
		return "skipped"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the final state of one entry.
type Outcome struct {
	Entry    string
	Status   Status
	Reason   string
	Err      error
	Finished time.Time
}

// Result is everything a run produced, in catalog order.
type Result struct {
	Outcomes        []Outcome
	BootstrapFailed bool
}

// Counts tallies the outcomes.
func (r Result) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case Succeeded:
			succeeded++
		case Failed:
			failed++
		case Skipped:
			skipped++
		}
	}
	return
}

// CommandRunner runs one command. *runner.Runner implements it.
type CommandRunner interface {
	Run(ctx context.Context, c runner.Command) (string, error)
}

// Orchestrator runs a catalog against the host.
type Orchestrator struct {
	Catalog  *catalog.Catalog
	Runner   CommandRunner
	Host     catalog.Host
	Prompter Prompter
	Log      *logger.FileLog
	Out      io.Writer
}

// Run executes the bootstrap entry and then every selected entry. A failing entry is
// recorded and the loop moves on. A failed bootstrap ends the run early without an
// error. The returned error is reserved for failures outside per-entry handling, such as
// an unusable prompt or cancellation.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	var res Result
	boot, rest := o.Catalog.Bootstrap()
	o.welcome()

	logger.Info("[INFO] Running %s...\n", boot.Name)
	o.Log.Infof("running mandatory entry %s", boot.Name)
	out := o.runEntry(ctx, boot)
	res.Outcomes = append(res.Outcomes, out)
	if out.Status == Failed {
		res.BootstrapFailed = true
		o.bootstrapGuidance(out)
		return res, nil
	}

	for _, e := range rest {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out := Outcome{Entry: e.Name, Status: Pending}
		if e.Installed(ctx, o.Host) {
			out.Status, out.Reason, out.Finished = Skipped, "already installed", time.Now()
			o.Log.Infof("%s: already installed, skipping", e.Name)
			logger.Note("✓ %s is already installed\n", e.Name)
			res.Outcomes = append(res.Outcomes, out)
			continue
		}

		out.Status = Asked
		yes, err := o.Prompter.Confirm(e.Question(), false)
		if err != nil {
			o.Log.Errorf("prompt for %s failed: %v", e.Name, err)
			return res, rigerr.New(rigerr.UnhandledCommandFailure, "ask about "+e.Name, err,
				"Run rig from an interactive terminal")
		}
		o.Log.Infof("%s: user answered %s", e.Name, yesNo(yes))
		if !yes {
			out.Status, out.Reason, out.Finished = Skipped, "declined", time.Now()
			res.Outcomes = append(res.Outcomes, out)
			continue
		}

		res.Outcomes = append(res.Outcomes, o.runEntry(ctx, e))
	}
	return res, nil
}

// runEntry runs every command of e, stopping at the first failure. Panics are contained
// so one broken entry cannot end the run.
func (o *Orchestrator) runEntry(ctx context.Context, e catalog.Entry) (out Outcome) {
	out = Outcome{Entry: e.Name, Status: Running}
	o.Log.Infof("%s: %s", e.Name, out.Status)
	logger.Info("[INFO] %s\n", e.Description)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			out.Status, out.Err, out.Finished = Failed, o.entryErr(e, err), time.Now()
			o.Log.Errorf("%s: %v", e.Name, err)
			logger.Error("[ERROR] %s failed: %v\n", e.Name, err)
		}
	}()

	for _, c := range e.Commands(o.Host.Home) {
		if _, err := o.Runner.Run(ctx, c); err != nil {
			out.Status, out.Err, out.Finished = Failed, o.entryErr(e, err), time.Now()
			o.Log.Errorf("%s: failed: %v", e.Name, err)
			logger.Error("[ERROR] %s failed: %v\n", e.Name, err)
			logger.Note("  Check log at %s\n", o.Log.Path())
			return out
		}
	}

	out.Status, out.Finished = Succeeded, time.Now()
	o.Log.Infof("%s: %s", e.Name, out.Status)
	logger.Info("[INFO] ✓ %s done\n", e.Name)
	if e.Notice != "" {
		logger.Warn("⚠ %s\n", e.Notice)
		o.Log.Warnf("%s: %s", e.Name, e.Notice)
	}
	return out
}

func (o *Orchestrator) entryErr(e catalog.Entry, err error) error {
	return rigerr.New(rigerr.ToolInstallFailed, "install "+e.Name, err,
		fmt.Sprintf("Try installing %s manually; check log at %s", e.Name, o.Log.Path()))
}

func (o *Orchestrator) bootstrapGuidance(out Outcome) {
	w := o.writer()
	logger.Error("✖ Bootstrap failed: %v\n", out.Err)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "rig requires sudo access for system package installation.")
	fmt.Fprintln(w, "To use rig, run it in an interactive terminal: rig")
	fmt.Fprintf(w, "Details are in the log at %s\n", o.Log.Path())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Available tools include: %s\n", availableTools(o.Catalog.Names()))
}

func (o *Orchestrator) welcome() {
	w := o.writer()
	fmt.Fprintf(w, "%s %s\n\n", bold("rig - Opinionated system setup tool"), faint(version.Version))
	fmt.Fprintln(w, faint("Basic tools to get started on a Debian-based Linux machine."))
	fmt.Fprintln(w, faint("No custom configurations, just the essential tools."))
	fmt.Fprintln(w)
}

// availableTools names the first few tools, ending with "and more" when the list is cut.
func availableTools(names []string) string {
	if len(names) <= shownTools {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:shownTools], ", ") + ", and more"
}

func (o *Orchestrator) writer() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// IsInterrupted reports whether err came from the user aborting a prompt.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
