// Package runner executes catalog commands: it elevates with sudo when asked, quiets apt,
// and records every command and its outcome in the installation log.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/alessio/shellescape"

	"rig/internal/logger"
	"rig/internal/retry"
)

// ErrSudoUnavailable is returned when a command needs sudo and it is not installed.
var ErrSudoUnavailable = errors.New("sudo is required but not available")

// Command is one process invocation of a catalog step.
type Command struct {
	Argv        []string
	Sudo        bool      // run through sudo unless already root
	Stdin       io.Reader // nil means the process stdin, so password prompts work
	Env         []string  // extra KEY=VALUE pairs
	Remote      bool      // fetches from the network; retried with the retry policy
	Quiet       bool      // output goes to the log only
	Description string
}

// Executor starts processes. OSExecutor is the real one; tests substitute a fake.
type Executor interface {
	Execute(ctx context.Context, argv, env []string, stdin io.Reader, out io.Writer) error
	LookPath(name string) (string, error)
}

// OSExecutor runs commands with os/exec. stdout and stderr are merged into out.
type OSExecutor struct{}

func (OSExecutor) Execute(ctx context.Context, argv, env []string, stdin io.Reader, out io.Writer) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = stdin
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

func (OSExecutor) LookPath(name string) (string, error) { return exec.LookPath(name) }

// Runner runs Commands through an Executor.
type Runner struct {
	Exec   Executor
	Log    *logger.FileLog
	Policy retry.Policy
	Stdout io.Writer
	Root   bool

	sudoChecked  bool
	sudoErr      error
	passwordless bool
}

// New returns a Runner for the real system.
func New(log *logger.FileLog) *Runner {
	return &Runner{Exec: OSExecutor{}, Log: log, Policy: retry.Default, Stdout: os.Stdout, Root: os.Geteuid() == 0}
}

// Run executes c and returns its combined output.
func (r *Runner) Run(ctx context.Context, c Command) (string, error) {
	if len(c.Argv) == 0 {
		return "", errors.New("empty command")
	}
	argv := slices.Clone(c.Argv)
	env := slices.Clone(c.Env)

	if isApt(argv) {
		argv = quietApt(argv)
		env = append(env, "DEBIAN_FRONTEND=noninteractive", "APT_LISTCHANGES_FRONTEND=none")
	}
	if c.Sudo && !r.Root {
		if err := r.checkSudo(ctx); err != nil {
			r.Log.Errorf("%v", err)
			return "", err
		}
		// sudo resets the environment, so variables are passed as arguments.
		argv = append(append([]string{"sudo"}, env...), argv...)
	}

	cmdStr := shellescape.QuoteCommand(argv)
	if c.Description != "" {
		logger.Note("→ %s\n", c.Description)
	}

	quiet := c.Quiet || isApt(c.Argv)
	if !c.Remote {
		return r.execute(ctx, cmdStr, argv, env, c.Stdin, quiet)
	}
	var out string
	err := r.Policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			r.Log.Warnf("retrying (attempt %d): %s", attempt, cmdStr)
		}
		var err error
		out, err = r.execute(ctx, cmdStr, argv, env, c.Stdin, quiet)
		return err
	})
	return out, err
}

func (r *Runner) execute(ctx context.Context, cmdStr string, argv, env []string, stdin io.Reader, quiet bool) (string, error) {
	r.Log.Infof("CMD: %s", cmdStr)
	logger.Debug("[DEBUG] Running command: %s\n", cmdStr)

	if stdin == nil {
		stdin = os.Stdin
	}
	var buf bytes.Buffer
	var out io.Writer = &buf
	if !quiet && r.Stdout != nil {
		out = io.MultiWriter(&buf, r.Stdout)
	}

	err := r.Exec.Execute(ctx, argv, env, stdin, out)
	output := buf.String()
	for _, line := range outputLines(output) {
		r.Log.Debugf("%s", line)
		if quiet && looksLikeError(line) {
			logger.Error("%s\n", line)
		}
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			r.Log.Errorf("Command not found: %s", argv[0])
			return output, fmt.Errorf("command not found: %s: %w", argv[0], err)
		}
		r.Log.Errorf("Command failed: %s: %v", cmdStr, err)
		return output, fmt.Errorf("command failed: %s: %w", cmdStr, err)
	}
	r.Log.Infof("OK: %s", cmdStr)
	return output, nil
}

// checkSudo verifies sudo exists once per run and tells the user when a password will be asked.
func (r *Runner) checkSudo(ctx context.Context) error {
	if r.sudoChecked {
		if r.sudoErr == nil && !r.passwordless {
			logger.Warn("sudo password required - you may be prompted for your password.\n")
		}
		return r.sudoErr
	}
	r.sudoChecked = true

	if err := r.Exec.Execute(ctx, []string{"sudo", "-n", "true"}, nil, nil, io.Discard); err == nil {
		r.passwordless = true
		return nil
	}
	if _, err := r.Exec.LookPath("sudo"); err != nil {
		r.sudoErr = fmt.Errorf("%w: install sudo or run as root", ErrSudoUnavailable)
		return r.sudoErr
	}
	logger.Warn("sudo password required - you may be prompted for your password.\n")
	logger.Note("If a command appears stuck, enter your sudo password in the terminal.\n")
	return nil
}

// Succeeds runs argv without logging to the console and reports whether it exited 0.
// It is used for "already installed" probes.
func (r *Runner) Succeeds(ctx context.Context, argv ...string) bool {
	if _, err := r.Exec.LookPath(argv[0]); err != nil {
		return false
	}
	err := r.Exec.Execute(ctx, argv, nil, nil, io.Discard)
	return err == nil
}

// HasCommand reports whether name resolves on PATH.
func (r *Runner) HasCommand(name string) bool {
	_, err := r.Exec.LookPath(name)
	return err == nil
}

func isApt(argv []string) bool {
	return argv[0] == "apt" || argv[0] == "apt-get"
}

// quietApt inserts -qq after update/install and -o APT::Status-Fd=/dev/null after the
// leading flags, unless the caller already chose a quiet level or options.
func quietApt(argv []string) []string {
	if !slices.ContainsFunc(argv, func(a string) bool { return a == "-q" || a == "-qq" || a == "-qqq" }) {
		if i := slices.Index(argv, "update"); i > 0 {
			argv = slices.Insert(argv, 1, "-qq")
		} else if i := slices.Index(argv, "install"); i > 0 {
			argv = slices.Insert(argv, i+1, "-qq")
		}
	}
	if !slices.Contains(argv, "-o") {
		i := 1
		for i < len(argv) && strings.HasPrefix(argv[i], "-") {
			i++
		}
		argv = slices.Insert(argv, i, "-o", "APT::Status-Fd=/dev/null")
	}
	return argv
}

func outputLines(s string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \r")
		if line == "" || strings.Contains(strings.ToLower(line), "does not have a stable cli interface") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func looksLikeError(line string) bool {
	l := strings.ToLower(line)
	for _, w := range []string{"error", "failed", "warning", "cannot", "unable", "e:"} {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}
