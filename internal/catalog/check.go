package catalog

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Probe answers the questions an installed-check asks about the host.
type Probe interface {
	Succeeds(ctx context.Context, argv ...string) bool
	HasCommand(name string) bool
}

// Host is what an installed-check runs against.
type Host struct {
	Probe      Probe
	Home       string
	LoginShell string
}

// Installed reports whether the entry's check passes on h. Entries without a check are
// never considered installed.
func (e Entry) Installed(ctx context.Context, h Host) bool {
	c := e.Check
	if c == nil {
		return false
	}
	if len(c.Command) > 0 && !h.Probe.Succeeds(ctx, c.Command...) {
		return false
	}
	for _, f := range c.Files {
		if _, err := os.Stat(expandHome(f, h.Home)); err != nil {
			return false
		}
	}
	if len(c.Commands) > 0 {
		need := c.Min
		if need == 0 {
			need = len(c.Commands)
		}
		found := 0
		for _, name := range c.Commands {
			if h.Probe.HasCommand(name) {
				found++
			}
		}
		if found < need {
			return false
		}
	}
	if c.LoginShell != "" && h.LoginShell != "" && filepath.Base(h.LoginShell) != c.LoginShell {
		return false
	}
	return true
}

// LoginShell returns the login shell of username from a passwd(5) file, or "" if unknown.
func LoginShell(passwdPath, username string) string {
	f, err := os.Open(passwdPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) == 7 && fields[0] == username {
			return fields[6]
		}
	}
	return ""
}
