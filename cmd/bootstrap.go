package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rig/internal/download"
	"rig/internal/handoff"
	"rig/internal/installer"
	"rig/internal/logger"
	"rig/internal/preflight"
	"rig/internal/release"
	"rig/internal/state"
	"rig/internal/version"
)

var noHandoff bool

// Host signals the bootstrap command reads; tests replace them.
var (
	systemProbe    preflight.EnvironmentProbe = preflight.SystemProbe{}
	detectTerminal                            = handoff.Detect
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Install the latest rig release into the user bin directory and start it",
	RunE:  runBootstrap,
}

func init() {
	bootstrapCmd.Flags().BoolVar(&noHandoff, "no-handoff", false, "Install only, do not start setup afterwards")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Nothing may be written on a rejected machine, the log included.
	pf := preflight.Classify(systemProbe)
	if err := pf.Err(); err != nil {
		return err
	}

	fl, err := openLog()
	if err != nil {
		return err
	}
	fl.Infof("preflight: os=%s arch=%s verdict=%s", pf.OS, pf.Arch, pf.Classification)
	logger.Info("[INFO] Detected %s %s\n", pf.OS, pf.Arch)

	resolver := release.NewResolver(settings.Repo, settings.APIBase, fl)
	desc, err := resolver.Resolve(ctx, "linux", preflight.GOArch(pf.Arch))
	if err != nil {
		return err
	}
	logger.Info("[INFO] Latest release is %s\n", desc.Tag)
	if version.UpToDate(desc.Version) {
		logger.Note("rig %s is already up to date, reinstalling\n", version.Version)
	}

	tmp, err := os.MkdirTemp("", "rig-download-*")
	if err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	d := download.New(fl, resolver.ReleasesPage())
	d.Policy = settings.RetryPolicy()
	logger.Info("[INFO] Downloading %s\n", desc.AssetName)
	path, err := d.Fetch(ctx, desc.URL, tmp)
	if err != nil {
		return err
	}

	inst, err := installer.New(settings.InstallDir, fl)
	if err != nil {
		return err
	}
	act, err := inst.Install(path)
	if err != nil {
		return err
	}
	recordBinary(fl, desc.Tag, act.Binary)

	if noHandoff {
		if hint := installer.ManualPathHint(act); hint != "" && act.PathChanged() {
			logger.Note("%s\n", hint)
		}
		return nil
	}
	var hints []string
	if act.PathChanged() {
		hints = append(hints, installer.ManualPathHint(act))
	}
	return handoff.New(detectTerminal(), cmd.OutOrStdout(), fl).Exec(ctx, act.Binary, nil, hints...)
}

func recordBinary(fl *logger.FileLog, tag, path string) {
	st, err := state.LoadState(settings.StateFile)
	if err != nil {
		fl.Warnf("not recording install: %v", err)
		return
	}
	st.Binary = &state.BinaryState{Version: tag, InstallPath: path, InstalledAt: time.Now()}
	if err := state.SaveState(settings.StateFile, st); err != nil {
		fl.Warnf("%v", err)
	}
}
