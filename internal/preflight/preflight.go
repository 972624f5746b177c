// Package preflight decides whether the current machine is eligible for installation.
// It only reads OS signals and never writes anything.
package preflight

import (
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"

	"rig/internal/rigerr"
)

const (
	// SupportedOS is the kernel name rig runs on.
	SupportedOS = "Linux"
	// PackageManager is the command whose presence stands in for "Debian-based distribution".
	// This is a heuristic: derivatives that ship apt-get pass, anything else is rejected.
	PackageManager = "apt-get"
)

// SupportedArch is the machine architecture allow-list, as reported by uname -m.
var SupportedArch = []string{"x86_64", "aarch64"}

// EnvironmentProbe reads the live signals preflight decides on.
type EnvironmentProbe interface {
	OS() (string, error)
	Arch() (string, error)
	HasPackageManager(name string) bool
}

// Classification is the preflight verdict. Exactly one value applies to a machine.
type Classification int

const (
	Supported Classification = iota
	UnsupportedOS
	UnsupportedArch
	UnsupportedDistro
)

func (c Classification) String() string {
	switch c {
	case Supported:
		return "supported"
	case UnsupportedOS:
		return "unsupported-os"
	case UnsupportedArch:
		return "unsupported-arch"
	case UnsupportedDistro:
		return "unsupported-distro"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// Result carries the verdict together with the values it was based on.
type Result struct {
	Classification Classification
	OS             string
	Arch           string
}

// Classify runs the checks in order: operating system, architecture, distribution.
// A probe error counts as a mismatch of the value being read.
func Classify(probe EnvironmentProbe) Result {
	res := Result{}

	osName, err := probe.OS()
	res.OS = osName
	if err != nil || osName != SupportedOS {
		res.Classification = UnsupportedOS
		return res
	}

	arch, err := probe.Arch()
	res.Arch = arch
	if err != nil || !archAllowed(arch) {
		res.Classification = UnsupportedArch
		return res
	}

	if !probe.HasPackageManager(PackageManager) {
		res.Classification = UnsupportedDistro
		return res
	}

	res.Classification = Supported
	return res
}

func archAllowed(arch string) bool {
	for _, a := range SupportedArch {
		if a == arch {
			return true
		}
	}
	return false
}

// Remediation is the message printed before exiting on a rejected machine.
func (r Result) Remediation() string {
	switch r.Classification {
	case UnsupportedOS:
		return fmt.Sprintf("rig only supports Linux (detected %q). Install the tools manually on this system.", r.OS)
	case UnsupportedArch:
		return fmt.Sprintf("rig only supports x86_64 and aarch64 (detected %q). Build rig from source for this architecture.", r.Arch)
	case UnsupportedDistro:
		return "rig needs a Debian-based distribution (apt-get was not found). Use your distribution's package manager instead."
	default:
		return ""
	}
}

// Err returns nil for a supported machine and an EnvironmentUnsupported error otherwise.
func (r Result) Err() error {
	if r.Classification == Supported {
		return nil
	}
	return rigerr.New(rigerr.EnvironmentUnsupported, "preflight",
		errors.New(r.Classification.String()), r.Remediation())
}

// GOArch maps an allowed uname machine name to the architecture used in release asset names.
func GOArch(machine string) string {
	switch machine {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return machine
	}
}

// SystemProbe reads the running kernel through uname(2) and looks commands up in PATH.
type SystemProbe struct{}

var _ EnvironmentProbe = SystemProbe{}

func (SystemProbe) OS() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(u.Sysname[:]), nil
}

func (SystemProbe) Arch() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(u.Machine[:]), nil
}

func (SystemProbe) HasPackageManager(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
