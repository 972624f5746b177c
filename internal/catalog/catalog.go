// Package catalog holds the static list of tools rig offers, decoded from YAML.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"rig/internal/runner"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the ordered list of entries. The first entry is the mandatory bootstrap.
type Catalog struct {
	Entries []Entry `yaml:"entries" validate:"required,min=1,dive"`
}

// Entry is one installable tool: its prompt text and install command sequence.
type Entry struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description" validate:"required"`
	Prompt      string `yaml:"prompt,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Check       *Check `yaml:"check,omitempty"`
	Steps       []Step `yaml:"steps" validate:"required,min=1,dive"`
	Notice      string `yaml:"notice,omitempty"`
}

// Check decides whether an entry is already installed. All present conditions must hold.
type Check struct {
	Command    []string `yaml:"command,omitempty" validate:"omitempty,min=1"`
	Files      []string `yaml:"files,omitempty"`
	Commands   []string `yaml:"commands,omitempty"`
	Min        int      `yaml:"min,omitempty" validate:"gte=0"`
	LoginShell string   `yaml:"login_shell,omitempty"`
}

// Step is exactly one of Run, Shell or Write.
type Step struct {
	Description string     `yaml:"description,omitempty"`
	Run         []string   `yaml:"run,omitempty"`
	Shell       string     `yaml:"shell,omitempty"`
	Write       *WriteFile `yaml:"write,omitempty"`
	Sudo        bool       `yaml:"sudo,omitempty"`
	Remote      bool       `yaml:"remote,omitempty"`
}

// WriteFile replaces a root-owned file with Content.
type WriteFile struct {
	Path    string `yaml:"path" validate:"required,startswith=/"`
	Content string `yaml:"content" validate:"required"`
}

// ErrInvalidCatalog wraps every decoding or validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		s := sl.Current().Interface().(Step)
		kinds := 0
		if len(s.Run) > 0 {
			kinds++
		}
		if s.Shell != "" {
			kinds++
		}
		if s.Write != nil {
			kinds++
		}
		if kinds != 1 {
			sl.ReportError(s.Run, "Run", "run", "one_of_run_shell_write", "")
		}
	}, Step{})
	return v
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from path, falling back to Default when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a catalog. Unknown keys are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidCatalog, err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	seen := map[string]bool{}
	required := 0
	for _, e := range c.Entries {
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrInvalidCatalog, e.Name)
		}
		seen[e.Name] = true
		if e.Required {
			required++
		}
	}
	if required != 1 {
		return nil, fmt.Errorf("%w: exactly one entry must be required, found %d", ErrInvalidCatalog, required)
	}
	return &c, nil
}

// Bootstrap returns the required entry and the optional rest in declaration order.
func (c *Catalog) Bootstrap() (Entry, []Entry) {
	var boot Entry
	rest := make([]Entry, 0, len(c.Entries)-1)
	for _, e := range c.Entries {
		if e.Required {
			boot = e
			continue
		}
		rest = append(rest, e)
	}
	return boot, rest
}

// Names lists the optional entries, in declaration order.
func (c *Catalog) Names() []string {
	_, rest := c.Bootstrap()
	names := make([]string, 0, len(rest))
	for _, e := range rest {
		names = append(names, e.Name)
	}
	return names
}

// Question is the yes/no prompt shown for the entry.
func (e Entry) Question() string {
	if e.Prompt != "" {
		return e.Prompt
	}
	return e.Description + "?"
}

// Commands translates the entry's steps into runner commands. A leading "~/" in run
// arguments and write paths is expanded to home.
func (e Entry) Commands(home string) []runner.Command {
	cmds := make([]runner.Command, 0, len(e.Steps))
	for _, s := range e.Steps {
		cmds = append(cmds, s.Command(home))
	}
	return cmds
}

// Command translates a single step.
func (s Step) Command(home string) runner.Command {
	c := runner.Command{Sudo: s.Sudo, Remote: s.Remote, Description: s.Description}
	switch {
	case s.Write != nil:
		c.Argv = []string{"tee", expandHome(s.Write.Path, home)}
		c.Stdin = strings.NewReader(s.Write.Content)
		c.Sudo = true
		c.Quiet = true
	case s.Shell != "":
		c.Argv = []string{"bash", "-c", s.Shell}
	default:
		c.Argv = make([]string, len(s.Run))
		for i, a := range s.Run {
			c.Argv[i] = expandHome(a, home)
		}
	}
	return c
}

func expandHome(s, home string) string {
	if s == "~" {
		return home
	}
	if strings.HasPrefix(s, "~/") {
		return home + s[1:]
	}
	return s
}
