package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig/internal/rigerr"
	"rig/internal/version"
)

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestPanicIsTrappedAndLogged(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "setup.log")
	t.Setenv("RIG_LOG_FILE", logPath)

	boom := &cobra.Command{
		Use: "boom",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openLog(); err != nil {
				return err
			}
			panic("broken")
		},
	}
	rootCmd.AddCommand(boom)
	t.Cleanup(func() { rootCmd.RemoveCommand(boom) })
	rootCmd.SetArgs([]string{"boom", "--config", emptyConfig(t)})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Equal(t, 1, execute(context.Background()))
	assert.Nil(t, fileLog)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "UnhandledCommandFailure")
	assert.Contains(t, string(data), "broken")
	assert.Regexp(t, `root_test\.go:\d+`, string(data))
}

func TestExitCodeFollowsErrorKind(t *testing.T) {
	var fail error
	c := &cobra.Command{
		Use:  "fail",
		RunE: func(cmd *cobra.Command, args []string) error { return fail },
	}
	rootCmd.AddCommand(c)
	t.Cleanup(func() { rootCmd.RemoveCommand(c) })
	rootCmd.SetArgs([]string{"fail", "--config", emptyConfig(t)})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	fail = rigerr.New(rigerr.ToolInstallFailed, "install gh", errors.New("exit status 1"), "")
	assert.Equal(t, 0, execute(context.Background()))

	fail = rigerr.New(rigerr.DownloadFailed, "download", errors.New("http 502"), "")
	assert.Equal(t, 1, execute(context.Background()))

	fail = errors.New("plain")
	assert.Equal(t, 1, execute(context.Background()))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"version", "--config", emptyConfig(t)})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Equal(t, 0, execute(context.Background()))
	assert.Contains(t, out.String(), "version: ")
	assert.Contains(t, out.String(), "commit: ")
}

func TestVersionCommandMarksPrerelease(t *testing.T) {
	old := version.Version
	version.Version = "v1.0.0-rc.1"
	t.Cleanup(func() { version.Version = old })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"version", "--config", emptyConfig(t)})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Equal(t, 0, execute(context.Background()))
	assert.Contains(t, out.String(), "version: v1.0.0-rc.1")
	assert.Contains(t, out.String(), "channel: prerelease")
}

func TestStatusWithoutState(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RIG_STATE_FILE", filepath.Join(dir, "state.json"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"status", "--config", emptyConfig(t)})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Equal(t, 0, execute(context.Background()))
	assert.Contains(t, out.String(), "No setup run recorded yet")
}

func TestBadConfigFails(t *testing.T) {
	rootCmd.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.Equal(t, 1, execute(context.Background()))
}
