// Package cli wires the Plan Engine, AI Plan Generator, and Git Session
// Service into cobra commands and renders their results as fixed JSON
// schemas.
package cli

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/codepunk/cli/internal/logging"
	"github.com/codepunk/cli/internal/telemetry"
	"github.com/codepunk/cli/internal/versioncheck"
	"github.com/spf13/cobra"
)

const gettingStarted = `

Getting Started:
  Stage a change by hand with 'codepunk plan add', or let the model propose
  one with 'codepunk plan generate --ai'. Review with 'codepunk plan diff',
  then 'codepunk plan apply' when you're happy with it.

`

// Version information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const sessionTimeoutDefault = 30 * time.Minute

// NewRootCmd builds the codepunk command tree.
func NewRootCmd() *cobra.Command {
	var app *appContext

	cmd := &cobra.Command{
		Use:   "codepunk",
		Short: "codepunk — plan, review, and apply AI-proposed code changes",
		Long:  "codepunk is a CLI for staging, generating, and applying multi-file code changes under an explicit review gate." + gettingStarted,
		// main.go handles error printing so it isn't duplicated here.
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			quiet := IsQuiet(cmd)
			level := levelFor(cmd)
			logging.Setup(quiet, level)

			a, err := newAppContext()
			if err != nil {
				return err
			}
			app = a

			if !quiet {
				timeout := sessionTimeoutDefault
				if a.settings.SessionTimeoutMinutes > 0 {
					timeout = time.Duration(a.settings.SessionTimeoutMinutes) * time.Minute
				}
				reaper := newReaperFor(a)
				_ = reaper.Sweep(cmd.Context(), timeout)
				versioncheck.CheckAndNotify(cmd, Version, a.configRoot)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app == nil {
				return
			}
			client := telemetry.NewClient(Version, app.settings.Telemetry, telemetryOptOut())
			defer client.Close()
			provider, model := providerModelFor(cmd)
			client.TrackCommand(cmd, provider, model)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().Bool(jsonFlagName, false, "emit a single JSON object instead of decorated output")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug-level logging on stderr")

	cmd.AddCommand(newPlanCmd(func() *appContext { return app }))
	cmd.AddCommand(newRunCmd(func() *appContext { return app }))
	cmd.AddCommand(newSessionsCmd(func() *appContext { return app }))
	cmd.AddCommand(newModelsCmd(func() *appContext { return app }))
	cmd.AddCommand(newDoctorCmd(func() *appContext { return app }))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func levelFor(cmd *cobra.Command) slog.Level {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// providerModelFor extracts the --provider/--model flags from cmd, if
// present, for telemetry; commands with no such flags report empty values.
func providerModelFor(cmd *cobra.Command) (provider, model string) {
	if v, err := cmd.Flags().GetString("provider"); err == nil {
		provider = v
	}
	if v, err := cmd.Flags().GetString("model"); err == nil {
		model = v
	}
	return provider, model
}

func telemetryOptOut() string {
	return envOrEmpty("CODEPUNK_TELEMETRY_OPTOUT")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			if IsQuiet(cmd) {
				_ = printJSON(cmd, map[string]string{
					"schema":  "version.v1",
					"version": Version,
					"commit":  Commit,
				})
				return
			}
			fmt.Printf("codepunk %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
