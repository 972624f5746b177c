// Package installer places a downloaded rig binary into the user's install directory
// and makes it invokable from the current and future shell sessions.
package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rig/internal/logger"
	"rig/internal/rigerr"
)

// BinaryName is the file name rig is installed under.
const BinaryName = "rig"

// Install steps, in execution order.
const (
	StepCreateDir   = "create-dir"
	StepUnpack      = "unpack"
	StepChmod       = "chmod"
	StepMove        = "move"
	StepPathCheck   = "path-check"
	StepPersistPath = "persist-path"
)

// StepError names the install step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("install step %s failed: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Env is the process environment the installer reads PATH and HOME from and mutates PATH in.
type Env interface {
	Getenv(key string) string
	Setenv(key, value string) error
}

// OSEnv is the real process environment.
type OSEnv struct{}

func (OSEnv) Getenv(key string) string       { return os.Getenv(key) }
func (OSEnv) Setenv(key, value string) error { return os.Setenv(key, value) }

// Activation records what Install changed so the caller can report it.
type Activation struct {
	Binary string // installed binary path

	AlreadyOnPath bool   // the install dir was on PATH before Install ran
	SessionPath   string // new PATH of this process, empty when unchanged

	StartupFile string // startup file that was checked or appended to
	ExportLine  string // line appended to StartupFile, empty when nothing was written
}

// PathChanged reports whether the session PATH was mutated.
func (a Activation) PathChanged() bool { return a.SessionPath != "" }

// Installer installs into Dir. Shell overrides the shell detected from $SHELL.
type Installer struct {
	Dir   string
	Home  string
	Shell string
	Env   Env
	Log   *logger.FileLog
}

// DefaultDir is the user-scoped install directory under home.
func DefaultDir(home string) string {
	return filepath.Join(home, ".local", "bin")
}

// New returns an Installer for the real environment. An empty dir means DefaultDir.
func New(dir string, log *logger.FileLog) (*Installer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if dir == "" {
		dir = DefaultDir(home)
	}
	return &Installer{Dir: dir, Home: home, Env: OSEnv{}, Log: log}, nil
}

// Install runs every install step for src, stopping at the first failure. The returned
// error wraps a *StepError and has kind InstallStepFailed.
func (i *Installer) Install(src string) (Activation, error) {
	var act Activation

	fail := func(step string, err error) (Activation, error) {
		i.Log.Errorf("install step %s failed: %v", step, err)
		return act, rigerr.New(rigerr.InstallStepFailed, "install "+src, &StepError{Step: step, Err: err},
			fmt.Sprintf("Fix the problem above and re-run the installer; check log at %s", i.Log.Path()))
	}
	done := func(step, format string, args ...any) {
		i.Log.Infof("install step %s: "+format, append([]any{step}, args...)...)
	}

	if err := ensureWritableDir(i.Dir); err != nil {
		return fail(StepCreateDir, err)
	}
	done(StepCreateDir, "%s", i.Dir)

	bin := src
	if IsArchive(src) {
		unpackDir, err := os.MkdirTemp(filepath.Dir(src), "unpack-*")
		if err != nil {
			return fail(StepUnpack, err)
		}
		defer os.RemoveAll(unpackDir)

		root, err := ExtractArchive(src, unpackDir)
		if err != nil {
			return fail(StepUnpack, err)
		}
		if bin, err = findExecutable(root, BinaryName); err != nil {
			return fail(StepUnpack, err)
		}
		done(StepUnpack, "%s", bin)
	}

	if err := os.Chmod(bin, 0755); err != nil {
		return fail(StepChmod, err)
	}
	done(StepChmod, "%s", bin)

	target := filepath.Join(i.Dir, BinaryName)
	if err := moveFile(bin, target, 0755); err != nil {
		return fail(StepMove, err)
	}
	act.Binary = target
	done(StepMove, "%s", target)
	logger.Info("[INFO] Installed %s\n", target)

	current := i.Env.Getenv("PATH")
	if onPath(current, i.Dir) {
		act.AlreadyOnPath = true
		done(StepPathCheck, "%s already on PATH", i.Dir)
		return act, nil
	}
	newPath := i.Dir
	if current != "" {
		newPath += string(os.PathListSeparator) + current
	}
	if err := i.Env.Setenv("PATH", newPath); err != nil {
		return fail(StepPathCheck, err)
	}
	act.SessionPath = newPath
	done(StepPathCheck, "prepended %s to session PATH", i.Dir)

	act.StartupFile = startupFile(i.Home, detectShell(i.shell()))
	line, err := appendExport(act.StartupFile, i.Home, i.Dir)
	if err != nil {
		return fail(StepPersistPath, err)
	}
	act.ExportLine = line
	if line != "" {
		done(StepPersistPath, "appended %q to %s", line, act.StartupFile)
		logger.Info("[INFO] Added %s to PATH in %s\n", i.Dir, act.StartupFile)
	} else {
		done(StepPersistPath, "%s already configured", act.StartupFile)
	}
	return act, nil
}

func (i *Installer) shell() string {
	if i.Shell != "" {
		return i.Shell
	}
	return i.Env.Getenv("SHELL")
}

// FailedStep returns the name of the failed install step carried by err, if any.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// ManualPathHint is printed when PATH was only changed for this session.
func ManualPathHint(act Activation) string {
	if act.StartupFile == "" {
		return ""
	}
	return fmt.Sprintf("Run 'source %s' or open a new shell to use %s", shortHome(act.StartupFile), BinaryName)
}

func shortHome(path string) string {
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(path, home+string(os.PathSeparator)) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}
