package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rig/internal/config"
	"rig/internal/logger"
	"rig/internal/rigerr"
)

var (
	// debug is toggled by the --debug flag.
	debug bool
	// configPath is the optional settings file passed with --config.
	configPath string
	// settings is loaded once before any subcommand runs.
	settings config.Settings
	// fileLog is the installation log of the running command, nil until opened.
	fileLog *logger.FileLog
)

// rootCmd runs the setup orchestrator when invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "rig",
	Short: "Opinionated Linux workstation setup",
	Long: `rig installs a curated set of developer tools on a Debian-based Linux machine.

Run without arguments to walk the tool catalog interactively. Use "rig bootstrap"
to install the latest rig release into ~/.local/bin and start it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(debug)
		s, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings = s
		return nil
	},
	RunE: runSetup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to settings file (default $XDG_CONFIG_HOME/rig/config.yaml)")

	rootCmd.AddCommand(setupCmd, bootstrapCmd, statusCmd, versionCmd)
}

// Execute runs the command line and exits non-zero on failure. SIGINT and SIGTERM cancel
// the context handed to every command. A panic anywhere below is reported with the
// location it came from.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context) (code int) {
	defer func() {
		if r := recover(); r != nil {
			site := panicSite()
			err := rigerr.New(rigerr.UnhandledCommandFailure, "rig", fmt.Errorf("panic at %s: %v", site, r),
				"This is a bug in rig; please report it together with the log file")
			if fileLog != nil {
				fileLog.Errorf("%s: %v", err.Kind, err)
			}
			report(err)
			code = 1
		}
		if fileLog != nil {
			_ = fileLog.Close()
			fileLog = nil
		}
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		report(err)
		if !rigerr.KindOf(err).Fatal() {
			return 0
		}
		return 1
	}
	return 0
}

func report(err error) {
	logger.Error("✖ %v\n", err)
	if s := rigerr.SuggestionOf(err); s != "" {
		logger.Note("  %s\n", s)
	}
}

// panicSite returns file:line of the innermost frame outside the runtime, which is where
// a recovered panic was raised.
func panicSite() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

// openLog opens the installation log for the running command.
func openLog() (*logger.FileLog, error) {
	fl, err := logger.OpenFileLog(logger.LogCandidates(settings.LogFile)...)
	if err != nil {
		return nil, err
	}
	fileLog = fl
	logger.Debug("[DEBUG] Logging to %s\n", fl.Path())
	return fl, nil
}
