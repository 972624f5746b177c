package cmd

import (
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"rig/internal/catalog"
	"rig/internal/logger"
	"rig/internal/orchestrator"
	"rig/internal/runner"
	"rig/internal/state"
)

const passwdFile = "/etc/passwd"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Walk the tool catalog and install the tools you select",
	RunE:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	fl, err := openLog()
	if err != nil {
		return err
	}

	cat, err := catalog.LoadFile(settings.CatalogFile)
	if err != nil {
		return err
	}
	fl.Infof("catalog loaded with %d entries", len(cat.Entries))

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	r := runner.New(fl)
	r.Policy = settings.RetryPolicy()

	host := catalog.Host{Probe: r, Home: home}
	if u, err := user.Current(); err == nil {
		host.LoginShell = catalog.LoginShell(passwdFile, u.Username)
	}

	prompter := orchestrator.NewSurveyPrompter()
	defer prompter.Close()

	o := &orchestrator.Orchestrator{
		Catalog:  cat,
		Runner:   r,
		Host:     host,
		Prompter: prompter,
		Log:      fl,
		Out:      cmd.OutOrStdout(),
	}

	logger.Info("[INFO] Starting rig setup (log: %s)\n", fl.Path())
	res, runErr := o.Run(ctx)
	if !res.BootstrapFailed {
		orchestrator.PrintSummary(cmd.OutOrStdout(), res, fl.Path())
	}
	saveState(fl, res)

	if runErr != nil {
		if orchestrator.IsInterrupted(runErr) {
			logger.Warn("Setup interrupted.\n")
		}
		return runErr
	}
	return nil
}

// saveState records the run. A state file that cannot be read is left alone.
func saveState(fl *logger.FileLog, res orchestrator.Result) {
	st, err := state.LoadState(settings.StateFile)
	if err != nil {
		fl.Warnf("not recording run: %v", err)
		logger.Debug("[DEBUG] Not recording run: %v\n", err)
		return
	}
	for _, name := range res.Record(st, time.Now()) {
		fl.Infof("state of %s is now %s", name, st.Entries[name].Status)
	}
	if err := state.SaveState(settings.StateFile, st); err != nil {
		fl.Warnf("%v", err)
		logger.Warn("Could not save run state: %v\n", err)
	}
}
