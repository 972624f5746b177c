// Package handoff runs the freshly installed binary when, and only when, the process
// can talk to a real terminal.
package handoff

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"rig/internal/logger"
)

// TTYPath is the controlling terminal device input is re-attached to.
const TTYPath = "/dev/tty"

// TerminalCapability holds the two signals the auto-run decision depends on.
type TerminalCapability struct {
	StdoutIsTerminal bool
	TTYReachable     bool
}

// CanAutoRun is true only when both signals hold. Standard input being piped does not matter.
func (c TerminalCapability) CanAutoRun() bool {
	return c.StdoutIsTerminal && c.TTYReachable
}

// Detect reads both signals from the running process.
func Detect() TerminalCapability {
	c := TerminalCapability{
		StdoutIsTerminal: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
	if tty, err := os.OpenFile(TTYPath, os.O_RDWR, 0); err == nil {
		c.TTYReachable = term.IsTerminal(int(tty.Fd()))
		_ = tty.Close()
	}
	return c
}

// Handoff executes the installed binary or prints how to run it.
type Handoff struct {
	Capability TerminalCapability
	Out        io.Writer
	Log        *logger.FileLog

	// OpenTTY and Run default to opening TTYPath and (*exec.Cmd).Run.
	OpenTTY func() (*os.File, error)
	Run     func(cmd *exec.Cmd) error
}

// New returns a Handoff that decides on c and prints instructions to out.
// Pass Detect() for the running process.
func New(c TerminalCapability, out io.Writer, log *logger.FileLog) *Handoff {
	return &Handoff{Capability: c, Out: out, Log: log}
}

// Exec runs binary with args and stdin attached to the terminal device when CanAutoRun
// holds. Otherwise it prints manual run instructions and returns nil. hints are extra lines
// printed with the instructions, such as how to reload PATH.
func (h *Handoff) Exec(ctx context.Context, binary string, args []string, hints ...string) error {
	if !h.Capability.CanAutoRun() {
		h.Log.Infof("handoff skipped: stdout terminal=%t, %s reachable=%t",
			h.Capability.StdoutIsTerminal, TTYPath, h.Capability.TTYReachable)
		h.instructions(binary, args, hints)
		return nil
	}

	openTTY := h.OpenTTY
	if openTTY == nil {
		openTTY = func() (*os.File, error) { return os.OpenFile(TTYPath, os.O_RDWR, 0) }
	}
	tty, err := openTTY()
	if err != nil {
		h.Log.Warnf("handoff skipped: cannot open %s: %v", TTYPath, err)
		h.instructions(binary, args, hints)
		return nil
	}
	defer tty.Close()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = tty
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	h.Log.Infof("handoff: running %s", strings.Join(cmd.Args, " "))
	logger.Info("[INFO] Starting %s...\n", binary)

	run := h.Run
	if run == nil {
		run = (*exec.Cmd).Run
	}
	if err := run(cmd); err != nil {
		h.Log.Errorf("handoff: %s failed: %v", binary, err)
		return fmt.Errorf("%s failed: %w", binary, err)
	}
	return nil
}

func (h *Handoff) instructions(binary string, args []string, hints []string) {
	out := h.Out
	if out == nil {
		out = os.Stdout
	}
	command := strings.Join(append([]string{binary}, args...), " ")
	fmt.Fprintln(out, "Installation complete. No interactive terminal was detected, so setup was not started.")
	fmt.Fprintf(out, "To continue, run:\n\n    %s\n\n", command)
	for _, hint := range hints {
		if hint != "" {
			fmt.Fprintln(out, hint)
		}
	}
}
