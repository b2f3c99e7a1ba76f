package cli

import (
	"os"

	"github.com/codepunk/cli/internal/aiplan"
	"github.com/codepunk/cli/internal/config"
	"github.com/codepunk/cli/internal/gitexec"
	"github.com/spf13/cobra"
)

type doctorCheck struct {
	Name   string `json:"name"`
	Ok     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func newDoctorCmd(getApp func() *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment for git, config, and provider readiness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			ctx := cmd.Context()

			var checks []doctorCheck

			isRepo := gitexec.IsGitRepo(ctx, app.repoRoot)
			checks = append(checks, doctorCheck{Name: "git-repository", Ok: isRepo, Detail: app.repoRoot})

			if err := os.MkdirAll(app.configRoot, 0o755); err != nil {
				checks = append(checks, doctorCheck{Name: "config-root-writable", Ok: false, Detail: err.Error()})
			} else {
				checks = append(checks, doctorCheck{Name: "config-root-writable", Ok: true, Detail: app.configRoot})
			}

			worktreeBase := config.WorktreeBase(app.settings)
			if err := os.MkdirAll(worktreeBase, 0o755); err != nil {
				checks = append(checks, doctorCheck{Name: "worktree-base-writable", Ok: false, Detail: err.Error()})
			} else {
				checks = append(checks, doctorCheck{Name: "worktree-base-writable", Ok: true, Detail: worktreeBase})
			}

			registry, err := aiplan.NewRegistry()
			if err != nil {
				checks = append(checks, doctorCheck{Name: "provider-auth", Ok: false, Detail: err.Error()})
			} else {
				anyKey := false
				for _, m := range registry.AllModels() {
					if m.HasKey {
						anyKey = true
						break
					}
				}
				checks = append(checks, doctorCheck{Name: "provider-auth", Ok: anyKey, Detail: "at least one provider has a configured API key"})
			}

			allOk := true
			for _, c := range checks {
				if !c.Ok {
					allOk = false
				}
			}

			return printJSON(cmd, map[string]any{
				"schema": "doctor.v1",
				"ok":     allOk,
				"checks": checks,
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}
