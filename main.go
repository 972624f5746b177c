package main

import (
	"rig/cmd"
)

// main delegates to cmd.Execute, which parses the command line and exits with the
// command's status.
//
// rig sets up a Debian-based Linux workstation:
//   - `rig bootstrap` checks the machine is supported, downloads the latest release for its
//     architecture with retries, installs it into ~/.local/bin, makes sure that directory is
//     on PATH for this session and future shells, and starts the installed binary when a
//     terminal is available
//   - `rig` runs the mandatory bootstrap step and then asks about every tool in the catalog,
//     installing the selected ones and logging every command to the installation log
//   - a failing tool is reported and the run continues; only environment, download and
//     install failures end the process with a non-zero status
func main() {
	cmd.Execute()
}
