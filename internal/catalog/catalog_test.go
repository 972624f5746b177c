package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Len(t, c.Entries, 22)

	boot, rest := c.Bootstrap()
	assert.Equal(t, "Bootstrap", boot.Name)
	assert.True(t, boot.Required)
	assert.Len(t, rest, 21)
	assert.Equal(t, "GitHub CLI", rest[0].Name)
	assert.Equal(t, "vrms", rest[len(rest)-1].Name)

	for _, e := range rest {
		assert.False(t, e.Required, e.Name)
		assert.NotNil(t, e.Check, "%s has an installed check", e.Name)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":         `entries: []`,
		"unknown key":   "entries:\n  - name: a\n    description: b\n    steps: [{run: [echo]}]\n    colour: red\n",
		"no steps":      "entries:\n  - name: a\n    description: b\n",
		"two kinds":     "entries:\n  - name: a\n    description: b\n    steps: [{run: [echo], shell: 'true'}]\n",
		"no kind":       "entries:\n  - name: a\n    description: b\n    steps: [{sudo: true}]\n",
		"relative path": "entries:\n  - name: a\n    description: b\n    steps: [{write: {path: etc/x, content: y}}]\n",
		"duplicate":     "entries:\n  - name: a\n    description: b\n    steps: [{run: [echo]}]\n  - name: a\n    description: c\n    steps: [{run: [echo]}]\n",
		"not yaml":      "entries: [",
		"none required": "entries:\n  - name: a\n    description: b\n    steps: [{run: [echo]}]\n",
		"two required":  "entries:\n  - name: a\n    description: b\n    required: true\n    steps: [{run: [echo]}]\n  - name: c\n    description: d\n    required: true\n    steps: [{run: [echo]}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestBootstrapIsTheRequiredEntry(t *testing.T) {
	doc := `entries:
  - name: one
    description: Install one
    steps: [{run: [echo, one]}]
  - name: base
    description: Initialize system
    required: true
    steps: [{run: [apt, update]}]
  - name: two
    description: Install two
    steps: [{run: [echo, two]}]
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	boot, rest := c.Bootstrap()
	assert.Equal(t, "base", boot.Name)
	require.Len(t, rest, 2)
	assert.Equal(t, "one", rest[0].Name)
	assert.Equal(t, "two", rest[1].Name)
	assert.Equal(t, []string{"one", "two"}, c.Names())
}

func TestStepCommands(t *testing.T) {
	doc := `entries:
  - name: keys
    description: Generate keys
    prompt: Make a key?
    required: true
    steps:
      - run: [ssh-keygen, -f, ~/.ssh/bot]
      - shell: curl -fsSL https://example.com | bash
        remote: true
      - write: {path: /etc/app.conf, content: "a = 1\n"}
      - run: [apt, install, -y, git]
        sudo: true
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	e := c.Entries[0]
	assert.Equal(t, "Make a key?", e.Question())

	cmds := e.Commands("/home/ada")
	require.Len(t, cmds, 4)
	assert.Equal(t, []string{"ssh-keygen", "-f", "/home/ada/.ssh/bot"}, cmds[0].Argv)
	assert.False(t, cmds[0].Sudo)

	assert.Equal(t, []string{"bash", "-c", "curl -fsSL https://example.com | bash"}, cmds[1].Argv)
	assert.True(t, cmds[1].Remote)

	assert.Equal(t, []string{"tee", "/etc/app.conf"}, cmds[2].Argv)
	assert.True(t, cmds[2].Sudo)
	assert.True(t, cmds[2].Quiet)
	body, err := io.ReadAll(cmds[2].Stdin)
	require.NoError(t, err)
	assert.Equal(t, "a = 1\n", string(body))

	assert.True(t, cmds[3].Sudo)
}

type fakeProbe struct {
	succeeds map[string]bool
	commands map[string]bool
}

func (p fakeProbe) Succeeds(_ context.Context, argv ...string) bool {
	return p.succeeds[strings.Join(argv, " ")]
}

func (p fakeProbe) HasCommand(name string) bool { return p.commands[name] }

func TestInstalled(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".nvm"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".nvm", "nvm.sh"), nil, 0644))

	h := Host{
		Probe: fakeProbe{
			succeeds: map[string]bool{"gh --version": true, "zsh --version": true},
			commands: map[string]bool{"gcc": true, "make": true, "pkg-config": true},
		},
		Home:       home,
		LoginShell: "/bin/bash",
	}
	ctx := context.Background()

	assert.True(t, Entry{Check: &Check{Command: []string{"gh", "--version"}}}.Installed(ctx, h))
	assert.False(t, Entry{Check: &Check{Command: []string{"btop", "--version"}}}.Installed(ctx, h))
	assert.True(t, Entry{Check: &Check{Files: []string{"~/.nvm/nvm.sh"}}}.Installed(ctx, h))
	assert.False(t, Entry{Check: &Check{Files: []string{"~/.ssh/bot", "~/.ssh/bot.pub"}}}.Installed(ctx, h))
	assert.True(t, Entry{Check: &Check{Commands: []string{"gcc", "make", "cmake", "pkg-config"}, Min: 3}}.Installed(ctx, h))
	assert.False(t, Entry{Check: &Check{Commands: []string{"gcc", "make", "cmake", "pkg-config"}}}.Installed(ctx, h))
	assert.False(t, Entry{Check: &Check{Command: []string{"zsh", "--version"}, LoginShell: "zsh"}}.Installed(ctx, h))
	assert.False(t, Entry{}.Installed(ctx, h))

	h.LoginShell = "/usr/bin/zsh"
	assert.True(t, Entry{Check: &Check{Command: []string{"zsh", "--version"}, LoginShell: "zsh"}}.Installed(ctx, h))
}

func TestLoginShell(t *testing.T) {
	passwd := filepath.Join(t.TempDir(), "passwd")
	require.NoError(t, os.WriteFile(passwd, []byte(
		"root:x:0:0:root:/root:/bin/bash\nada:x:1000:1000:Ada,,,:/home/ada:/usr/bin/zsh\n"), 0644))

	assert.Equal(t, "/usr/bin/zsh", LoginShell(passwd, "ada"))
	assert.Equal(t, "/bin/bash", LoginShell(passwd, "root"))
	assert.Empty(t, LoginShell(passwd, "bob"))
	assert.Empty(t, LoginShell(filepath.Join(t.TempDir(), "missing"), "ada"))
}
