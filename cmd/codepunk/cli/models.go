package cli

import (
	"github.com/codepunk/cli/internal/aiplan"
	"github.com/spf13/cobra"
)

func newModelsCmd(getApp func() *appContext) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available providers and models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := aiplan.NewRegistry()
			if err != nil {
				return err
			}
			var models []aiplan.Model
			if provider != "" {
				p, ok := registry.Get(provider)
				if !ok {
					return emitError(cmd, "models.list.v1", CodeModelUnavailable, "unknown provider "+provider)
				}
				models = p.Models()
			} else {
				models = registry.AllModels()
			}
			return printJSON(cmd, map[string]any{
				"schema": "models.list.v1",
				"models": models,
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "restrict the listing to one provider")
	addJSONFlag(cmd)
	return cmd
}
