package logger

import (
	"fmt"

	"github.com/fatih/color" // Colored console output for status lines
)

// Define colorized printing functions for the console status lines rig prints while it works.
// These are package-level variables holding functions that behave like fmt.Printf,
// but with text colored appropriately for the level.

// Info prints progress and success lines in green.
var Info = color.New(color.FgGreen).PrintfFunc()

// Warn prints notices the user should act on (manual steps, skipped work) in bright magenta.
var Warn = color.New(color.FgHiMagenta).PrintfFunc()

// Error prints failures in red. Failure lines always carry a remediation hint.
var Error = color.New(color.FgRed).PrintfFunc()

// Note prints secondary detail (commands being run, file names) without color.
var Note = func(format string, a ...any) { fmt.Printf(format, a...) }

// Debug prints debug messages in cyan when enabled, otherwise it is a no-op.
// It is assigned during Init based on the --debug flag.
var Debug = func(format string, a ...any) {}

// Init enables or disables debug output on the console.
// The installation log file always records debug entries regardless of this flag.
func Init(enableDebug bool) {
	if enableDebug {
		Debug = color.New(color.FgCyan).PrintfFunc()
	} else {
		Debug = func(format string, a ...any) {}
	}
}
