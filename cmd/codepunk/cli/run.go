package cli

import (
	"errors"

	"github.com/codepunk/cli/internal/aiplan"
	"github.com/codepunk/cli/internal/gitsession"
	"github.com/codepunk/cli/internal/planengine"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/tokencount"
	"github.com/spf13/cobra"
)

// newRunCmd wires the one-shot path: generate a plan from a goal, optionally
// inside an isolated git session, and apply it immediately. With --session,
// the plan is applied inside the session's worktree and committed via
// CommitToolCall; a real apply is then accepted, while a dry run rejects the
// session. A failure in generation, apply, or commit rejects the session,
// leaving the user's working directory untouched; a failed accept keeps the
// worktree for inspection.
func newRunCmd(getApp func() *appContext) *cobra.Command {
	var goal, provider, model, planID string
	var useSession, dryRun, force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and apply a plan from a goal in one step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			ctx := cmd.Context()

			registry, err := aiplan.NewRegistry()
			if err != nil {
				return err
			}
			p, ok := registry.Get(provider)
			if !ok {
				return emitError(cmd, "run.execute.v1", CodeModelUnavailable, "unknown provider "+provider)
			}

			if planID == "" {
				id, err := app.engine.Create(ctx, goal)
				if err != nil {
					return err
				}
				planID = id
			}

			engine := app.engine
			var state *gitsession.State
			if useSession {
				s, err := app.sessionSvc.Begin(ctx, true, app.repoRoot)
				if err != nil {
					return err
				}
				if s == nil {
					return emitError(cmd, "run.execute.v1", CodeSessionNotFound, "could not begin a git session (not a repo, or worktree add failed)")
				}
				state = s
				engine = planengine.New(app.planStore, state.WorktreePath)
			}

			opts := aiplan.Options{
				ModelID:                       model,
				RetryInvalidOutput:            app.settings.Safety.RetryInvalidOutput,
				EnableWebsiteScaffoldFallback: app.settings.EnableWebsiteScaffoldFallback,
				Safety:                        app.settings.Safety,
			}
			generation, genErr := aiplan.Generate(ctx, engine, planID, goal, p, opts)
			if genErr != nil {
				if state != nil {
					_ = app.sessionSvc.Reject(ctx, state)
				}
				var typed *aiplan.Error
				if errors.As(genErr, &typed) {
					return emitError(cmd, "run.execute.v1", typed.Code, typed.Message)
				}
				return genErr
			}

			summary, outcomes, applyErr := engine.Apply(ctx, planID, dryRun, force)
			if applyErr != nil {
				if state != nil {
					_ = app.sessionSvc.Reject(ctx, state)
				}
				if errors.Is(applyErr, planstore.ErrNotFound) {
					return emitError(cmd, "run.execute.v1", CodeSessionNotFound, "plan "+planID+" not found")
				}
				return applyErr
			}

			if state != nil {
				if _, err := app.sessionSvc.CommitToolCall(ctx, state, "plan-apply", goal); err != nil {
					_ = app.sessionSvc.Reject(ctx, state)
					return err
				}
				if !dryRun {
					if _, err := app.sessionSvc.Accept(ctx, state, app.repoRoot); err != nil {
						return emitError(cmd, "run.execute.v1", CodeSessionNotFound, "session accept failed, worktree retained for inspection: "+err.Error())
					}
				} else {
					_ = app.sessionSvc.Reject(ctx, state)
				}
			}

			payload := map[string]any{
				"schema":  "run.execute.v1",
				"planId":  planID,
				"goal":    goal,
				"summary": summary,
				"files":   outcomes,
			}
			if generation.PromptTokens == nil && generation.CompletionTokens == nil && generation.TotalTokens == nil {
				approx := tokencount.Approx(len(goal))
				payload["tokenUsageApprox"] = map[string]int{
					"prompt":     approx,
					"completion": 0,
					"total":      approx,
				}
			}
			return printJSON(cmd, payload)
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "goal passed to the model")
	cmd.Flags().StringVar(&provider, "provider", "", "provider name (e.g. anthropic, openai)")
	cmd.Flags().StringVar(&model, "model", "", "model id; defaults to the provider's first model")
	cmd.Flags().StringVar(&planID, "plan", "", "existing plan id; a new plan is created if omitted")
	cmd.Flags().BoolVar(&useSession, "session", false, "isolate execution in a git worktree session, accepting on success")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without touching the working tree")
	cmd.Flags().BoolVar(&force, "force", false, "apply a file even if it has drifted from hashBefore")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}
