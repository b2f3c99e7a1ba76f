package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/codepunk/cli/internal/aiplan"
	"github.com/codepunk/cli/internal/planengine"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/planengine/safety"
	"github.com/codepunk/cli/internal/summarize"
	"github.com/spf13/cobra"
)

func newPlanCmd(getApp func() *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create, inspect, and apply staged file changes",
	}
	cmd.AddCommand(newPlanCreateCmd(getApp))
	cmd.AddCommand(newPlanAddCmd(getApp))
	cmd.AddCommand(newPlanListCmd(getApp))
	cmd.AddCommand(newPlanShowCmd(getApp))
	cmd.AddCommand(newPlanDiffCmd(getApp))
	cmd.AddCommand(newPlanApplyCmd(getApp))
	cmd.AddCommand(newPlanGenerateCmd(getApp))
	return cmd
}

func newPlanCreateCmd(getApp func() *appContext) *cobra.Command {
	var goal string
	var fromSession string
	var maxMessages int
	var includeTool bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new plan, either from an explicit goal or a session transcript",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			ctx := cmd.Context()

			if fromSession != "" {
				messages, err := readTranscript(fromSession)
				if err != nil {
					return emitError(cmd, "plan.create.fromSession.v1", CodeInputMissing, err.Error())
				}
				summary := summarize.Summarize(messages, summarize.Options{MaxMessages: maxMessages, IncludeToolMessages: includeTool})
				if summary == nil {
					return emitError(cmd, "plan.create.fromSession.v1", CodeInsufficientSessionContext, "fewer than 2 user messages in transcript")
				}
				id, err := app.engine.Create(ctx, summary.Goal)
				if err != nil {
					return err
				}
				rec, err := app.planStore.Load(ctx, id)
				if err != nil {
					return err
				}
				rec.Summary = summary
				if err := app.planStore.Save(ctx, rec); err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"schema":             "plan.create.fromSession.v1",
					"planId":             id,
					"goal":               summary.Goal,
					"candidateFiles":     summary.CandidateFiles,
					"messageSampleCount": summary.UsedMessages,
					"truncated":          summary.Truncated,
					"tokenUsageApprox": map[string]int{
						"sampleChars":  summary.TokenUsage.SampleChars,
						"approxTokens": summary.TokenUsage.ApproxTokens,
					},
				})
			}

			if goal == "" {
				return emitError(cmd, "plan.create.v1", CodeInputMissing, "--goal is required (or use --from-session)")
			}
			id, err := app.engine.Create(ctx, goal)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema": "plan.create.v1",
				"planId": id,
				"goal":   goal,
			})
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "goal description for the new plan")
	cmd.Flags().StringVar(&fromSession, "from-session", "", "path to a session transcript (JSON array of {role,text}), or '-' for stdin")
	cmd.Flags().IntVar(&maxMessages, "max-messages", 20, "maximum sampled messages when seeding from a session")
	cmd.Flags().BoolVar(&includeTool, "include-tool-messages", false, "include tool-role messages when sampling")
	addJSONFlag(cmd)
	return cmd
}

// transcriptEntry is the wire shape accepted by --from-session.
type transcriptEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func readTranscript(path string) ([]summarize.Message, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path) //nolint:gosec // user-supplied transcript path, read-only
		if err != nil {
			return nil, fmt.Errorf("opening transcript: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	var entries []transcriptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing transcript JSON: %w", err)
	}
	messages := make([]summarize.Message, len(entries))
	for i, e := range entries {
		messages[i] = summarize.Message{Role: e.Role, Text: e.Text}
	}
	return messages, nil
}

func newPlanAddCmd(getApp func() *appContext) *cobra.Command {
	var planID, path, afterFile, rationale string
	var isDelete bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Stage one file change in a plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			ctx := cmd.Context()

			opts := planengine.StageOptions{Path: path, IsDelete: isDelete, Rationale: rationale}
			if afterFile != "" {
				data, err := os.ReadFile(afterFile) //nolint:gosec // user-supplied file path for staged content
				if err != nil {
					return emitError(cmd, "plan.add.v1", CodeInputMissing, err.Error())
				}
				content := string(data)
				opts.AfterContent = &content
			}

			if err := app.engine.Stage(ctx, planID, opts); err != nil {
				if errors.Is(err, planstore.ErrNotFound) {
					return emitError(cmd, "plan.add.v1", CodeSessionNotFound, "plan "+planID+" not found")
				}
				return err
			}
			if err := runSafetyGate(ctx, app, planID); err != nil {
				var tooMany *safety.ErrTooManyFiles
				if errors.As(err, &tooMany) {
					return emitError(cmd, "plan.add.v1", CodeTooManyFiles, err.Error())
				}
				return err
			}

			return printJSON(cmd, map[string]any{
				"schema":   "plan.add.v1",
				"planId":   planID,
				"path":     path,
				"action":   actionLabel(isDelete, afterFile != ""),
				"hasAfter": afterFile != "",
				"isDelete": isDelete,
			})
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id")
	cmd.Flags().StringVar(&path, "path", "", "file path relative to the repository root")
	cmd.Flags().StringVar(&afterFile, "after-file", "", "path to a file whose contents become the staged afterContent")
	cmd.Flags().StringVar(&rationale, "rationale", "", "human-readable rationale for this change")
	cmd.Flags().BoolVar(&isDelete, "delete", false, "stage a deletion instead of a modification")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func actionLabel(isDelete, hasAfter bool) string {
	switch {
	case isDelete:
		return "delete"
	case hasAfter:
		return "modify"
	default:
		return "snapshot"
	}
}

// runSafetyGate re-runs the Plan Safety Gate over the whole plan after a
// manual stage, the same validation the AI Plan Generator's path already
// gets via safety.Apply before AttachFiles.
func runSafetyGate(ctx context.Context, app *appContext, planID string) error {
	rec, err := app.planStore.Load(ctx, planID)
	if err != nil {
		return err
	}
	if _, err := safety.Apply(rec.Files, app.settings.Safety); err != nil {
		return err
	}
	return app.planStore.Save(ctx, rec)
}

func newPlanListCmd(getApp func() *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			defs, err := app.planStore.LoadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema": "plan.list.v1",
				"plans":  defs,
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func newPlanShowCmd(getApp func() *appContext) *cobra.Command {
	var planID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a plan's full record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			rec, err := app.planStore.Load(cmd.Context(), planID)
			if err != nil {
				if errors.Is(err, planstore.ErrNotFound) {
					return emitError(cmd, "plan.show.v1", CodeSessionNotFound, "plan "+planID+" not found")
				}
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema":     "plan.show.v1",
				"definition": rec.Definition,
				"files":      rec.Files,
				"summary":    rec.Summary,
				"generation": rec.Generation,
			})
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newPlanDiffCmd(getApp func() *appContext) *cobra.Command {
	var planID string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show unified diffs for every staged file in a plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			diffs, err := app.engine.Diff(cmd.Context(), planID)
			if err != nil {
				if errors.Is(err, planstore.ErrNotFound) {
					return emitError(cmd, "plan.diff.v1", CodeSessionNotFound, "plan "+planID+" not found")
				}
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema": "plan.diff.v1",
				"planId": planID,
				"diffs":  diffs,
			})
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newPlanApplyCmd(getApp func() *appContext) *cobra.Command {
	var planID string
	var dryRun, force, yes bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a plan's staged changes to the working tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()

			if !dryRun {
				ok, err := confirm(cmd, "Apply plan "+planID+"?", "Writes staged file changes into the working tree.", yes)
				if err != nil {
					return err
				}
				if !ok {
					return printJSON(cmd, map[string]any{"schema": "plan.apply.v1", "planId": planID, "cancelled": true})
				}
			}

			summary, outcomes, err := app.engine.Apply(cmd.Context(), planID, dryRun, force)
			if err != nil {
				if errors.Is(err, planstore.ErrNotFound) {
					return emitError(cmd, "plan.apply.v1", CodeSessionNotFound, "plan "+planID+" not found")
				}
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema":  "plan.apply.v1",
				"planId":  planID,
				"summary": summary,
				"files":   outcomes,
			})
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without touching the working tree")
	cmd.Flags().BoolVar(&force, "force", false, "apply a file even if it has drifted from hashBefore")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the interactive confirmation prompt")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newPlanGenerateCmd(getApp func() *appContext) *cobra.Command {
	var planID, goal, provider, model string
	var ai bool
	var retryInvalidOutput int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Propose a set of file changes via a model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !ai {
				return emitError(cmd, "plan.generate.ai.v1", CodeInputMissing, "only --ai generation is supported")
			}
			app := getApp()
			ctx := cmd.Context()

			registry, err := aiplan.NewRegistry()
			if err != nil {
				return err
			}
			p, ok := registry.Get(provider)
			if !ok {
				return emitError(cmd, "plan.generate.ai.v1", CodeModelUnavailable, "unknown provider "+provider)
			}

			retryMax := retryInvalidOutput
			if retryMax == 0 {
				retryMax = app.settings.Safety.RetryInvalidOutput
			}
			opts := aiplan.Options{
				ModelID:                       model,
				RetryInvalidOutput:            retryMax,
				EnableWebsiteScaffoldFallback: app.settings.EnableWebsiteScaffoldFallback,
				Safety:                        app.settings.Safety,
			}

			generation, genErr := aiplan.Generate(ctx, app.engine, planID, goal, p, opts)
			if genErr != nil {
				var typed *aiplan.Error
				if errors.As(genErr, &typed) {
					return emitError(cmd, "plan.generate.ai.v1", typed.Code, typed.Message)
				}
				if errors.Is(genErr, planstore.ErrNotFound) {
					return emitError(cmd, "plan.generate.ai.v1", CodeSessionNotFound, "plan "+planID+" not found")
				}
				return genErr
			}

			rec, err := app.planStore.Load(ctx, planID)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema":      "plan.generate.ai.v1",
				"planId":      planID,
				"goal":        goal,
				"provider":    generation.Provider,
				"model":       generation.Model,
				"changeCount": len(rec.Files),
				"files":       rec.Files,
				"tokenUsage": map[string]*int{
					"prompt":     generation.PromptTokens,
					"completion": generation.CompletionTokens,
					"total":      generation.TotalTokens,
				},
				"iterations":  generation.Iterations,
				"safetyFlags": generation.SafetyFlags,
				"truncated":   containsDiag(rec.Files, "TruncatedAggregate"),
			})
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id")
	cmd.Flags().StringVar(&goal, "goal", "", "goal passed to the model")
	cmd.Flags().BoolVar(&ai, "ai", false, "generate via a model (required)")
	cmd.Flags().StringVar(&provider, "provider", "", "provider name (e.g. anthropic, openai)")
	cmd.Flags().StringVar(&model, "model", "", "model id; defaults to the provider's first model")
	cmd.Flags().IntVar(&retryInvalidOutput, "retry-invalid-output", 0, "override the configured retry count for unparseable model output")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func containsDiag(files []planstore.PlanFileChange, want string) bool {
	for _, f := range files {
		for _, d := range f.Diagnostics {
			if d == want {
				return true
			}
		}
	}
	return false
}
