package installer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"

	"rig/internal/logger"
)

// rcMarker precedes every line rig appends to a startup file.
const rcMarker = "# Added by rig installer"

// startupFiles maps a shell to its candidate startup files, most preferred first.
// The first candidate is used when none exist yet.
var startupFiles = map[string][]string{
	"zsh":  {".zshrc", ".zprofile", ".zshenv"},
	"bash": {".bashrc", ".bash_profile", ".profile"},
}

// startupFile picks the startup file for shell inside home: the first existing candidate,
// else the shell's default.
func startupFile(home, shell string) string {
	candidates, ok := startupFiles[shell]
	if !ok {
		logger.Warn("[WARN] Unknown shell '%s', defaulting to '.bashrc'\n", shell)
		candidates = startupFiles["bash"]
	}
	for _, name := range candidates {
		path := filepath.Join(home, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(home, candidates[0])
}

// exportLine returns the line that prepends dir to PATH, spelled relative to $HOME when possible.
func exportLine(home, dir string) string {
	if rel, err := filepath.Rel(home, dir); err == nil && !strings.HasPrefix(rel, "..") && shellescape.Quote(rel) == rel {
		return fmt.Sprintf(`export PATH="$HOME/%s:$PATH"`, rel)
	}
	return fmt.Sprintf(`export PATH=%s:"$PATH"`, shellescape.Quote(dir))
}

// dirSpellings lists the ways a startup file may refer to dir.
func dirSpellings(home, dir string) []string {
	spellings := []string{dir}
	if rel, err := filepath.Rel(home, dir); err == nil && !strings.HasPrefix(rel, "..") {
		spellings = append(spellings, "$HOME/"+rel, "${HOME}/"+rel, "~/"+rel)
	}
	return spellings
}

// hasPathExport reports whether the startup file already adds dir to PATH in any common format,
// such as export PATH="dir:$PATH", PATH=$PATH:dir or export PATH="$HOME/rel:$PATH".
func hasPathExport(rcPath, home, dir string) (bool, error) {
	f, err := os.Open(rcPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	spellings := dirSpellings(home, dir)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if !strings.HasPrefix(line, "PATH=") {
			continue
		}
		value := strings.NewReplacer(`"`, "", "'", "").Replace(strings.TrimPrefix(line, "PATH="))
		for _, entry := range strings.Split(value, ":") {
			for _, s := range spellings {
				if strings.TrimRight(entry, "/") == s {
					return true, nil
				}
			}
		}
	}
	return false, scanner.Err()
}

// appendExport adds the export line for dir to rcPath unless one is already present.
// The file is only ever opened for appending. It returns the appended line, or "" when
// nothing was written.
func appendExport(rcPath, home, dir string) (string, error) {
	present, err := hasPathExport(rcPath, home, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rcPath, err)
	}
	if present {
		logger.Debug("[DEBUG] %s already adds %s to PATH\n", rcPath, dir)
		return "", nil
	}

	line := exportLine(home, dir)
	file, err := os.OpenFile(rcPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("unable to open file %s for appending: %w", rcPath, err)
	}
	if _, err := file.WriteString("\n" + rcMarker + "\n" + line + "\n"); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write %s: %w", rcPath, err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return line, nil
}

// onPath reports whether dir is one of the entries of the PATH value.
func onPath(pathValue, dir string) bool {
	clean := filepath.Clean(dir)
	for _, entry := range filepath.SplitList(pathValue) {
		if entry != "" && filepath.Clean(entry) == clean {
			return true
		}
	}
	return false
}
