// Package rigerr defines the failure taxonomy rig reports to the user.
// Every kind maps to a remediation hint that is printed alongside the error.
package rigerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how rig reacts to it.
type Kind int

const (
	// Unknown is the zero Kind; KindOf returns it for errors outside the taxonomy.
	Unknown Kind = iota
	// EnvironmentUnsupported is an OS, architecture or distribution mismatch. Fatal, never retried.
	EnvironmentUnsupported
	// ResolutionFailed means the latest release could not be determined. Fatal, never retried.
	ResolutionFailed
	// DownloadFailed is reported after the download retry budget is exhausted.
	DownloadFailed
	// InstallStepFailed is a filesystem step of the install failing. Fatal.
	InstallStepFailed
	// ToolInstallFailed is a single catalog entry failing. Logged, the loop continues.
	ToolInstallFailed
	// UnhandledCommandFailure is anything that escaped the per-entry handling. Fatal.
	UnhandledCommandFailure
)

func (k Kind) String() string {
	switch k {
	case EnvironmentUnsupported:
		return "EnvironmentUnsupported"
	case ResolutionFailed:
		return "ResolutionFailed"
	case DownloadFailed:
		return "DownloadFailed"
	case InstallStepFailed:
		return "InstallStepFailed"
	case ToolInstallFailed:
		return "ToolInstallFailed"
	case UnhandledCommandFailure:
		return "UnhandledCommandFailure"
	default:
		return "Unknown"
	}
}

// Fatal reports whether a failure of this kind must end the process with a non-zero status.
func (k Kind) Fatal() bool {
	return k != ToolInstallFailed
}

// Error is a classified failure with the hint shown to the user.
type Error struct {
	Kind       Kind
	Op         string
	Err        error
	Suggestion string
}

// New builds a classified error.
func New(kind Kind, op string, err error, suggestion string) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Suggestion: suggestion}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return Unknown
}

// SuggestionOf returns the remediation hint attached to err, if any.
func SuggestionOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Suggestion
	}
	return ""
}
