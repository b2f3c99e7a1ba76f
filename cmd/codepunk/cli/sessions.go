package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newSessionsCmd(getApp func() *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and control git-worktree AI sessions",
	}
	cmd.AddCommand(newSessionsListCmd(getApp))
	cmd.AddCommand(newSessionsShowCmd(getApp))
	cmd.AddCommand(newSessionsAcceptCmd(getApp))
	cmd.AddCommand(newSessionsRejectCmd(getApp))
	return cmd
}

func newSessionsListCmd(getApp func() *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted git sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			states, err := app.sessionSt.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema":   "sessions.list.v1",
				"sessions": states,
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func newSessionsShowCmd(getApp func() *appContext) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one git session's full state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			state, err := app.sessionSt.Load(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			if state == nil {
				return emitError(cmd, "sessions.show.v1", CodeSessionNotFound, "session "+sessionID+" not found")
			}
			return printJSON(cmd, map[string]any{
				"schema":  "sessions.show.v1",
				"session": state,
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionsAcceptCmd(getApp func() *appContext) *cobra.Command {
	var sessionID string
	var yes bool
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept the active git session, applying its diff into the working directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			ctx := cmd.Context()
			state, err := app.sessionSt.Load(ctx, sessionID)
			if err != nil {
				return err
			}
			if state == nil {
				return emitError(cmd, "sessions.show.v1", CodeSessionNotFound, "session "+sessionID+" not found")
			}

			confirmed, err := confirm(cmd, "Accept session "+sessionID+"?", "Applies the session's changes to "+app.repoRoot+" as unstaged modifications.", yes)
			if err != nil {
				return err
			}
			if !confirmed {
				return printJSON(cmd, map[string]any{"schema": "sessions.show.v1", "session": sessionID, "cancelled": true})
			}

			ok, err := app.sessionSvc.Accept(ctx, state, app.repoRoot)
			if err != nil {
				return errors.New("accept failed, worktree retained for inspection: " + err.Error())
			}
			return printJSON(cmd, map[string]any{
				"schema":   "sessions.show.v1",
				"session":  sessionID,
				"accepted": ok,
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the interactive confirmation prompt")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionsRejectCmd(getApp func() *appContext) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "reject",
		Short: "Reject the active git session, discarding its worktree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp()
			ctx := cmd.Context()
			state, err := app.sessionSt.Load(ctx, sessionID)
			if err != nil {
				return err
			}
			if state == nil {
				return emitError(cmd, "sessions.show.v1", CodeSessionNotFound, "session "+sessionID+" not found")
			}
			if err := app.sessionSvc.Reject(ctx, state); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"schema":   "sessions.show.v1",
				"session":  sessionID,
				"rejected": true,
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	addJSONFlag(cmd)
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
