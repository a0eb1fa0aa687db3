package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"keroro/internal/registry"
	"keroro/internal/session"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Browse the backend model catalog",
	}

	modelsCmd.AddCommand(newModelsListCommand(ctx))
	modelsCmd.AddCommand(newModelsFetchCommand(ctx))

	return modelsCmd
}

func newModelsListCommand(ctx *commandContext) *cobra.Command {
	var query registry.Query
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				models, err := s.Registry.ListModels(cmd.Context(), query, refresh)
				if err != nil {
					return err
				}
				return printModels(cmd, ctx, models)
			})
		},
	}

	cmd.Flags().StringVar(&query.Provider, "provider", "", "Only models served by this provider")
	cmd.Flags().StringVar(&query.Tag, "tag", "", "Only models carrying this tag")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the model cache")
	return cmd
}

func newModelsFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <provider>",
		Short: "Ask the backend to fetch a provider's live model list",
		Long: "Pushes the backend configuration merged with [providers] so the backend can " +
			"authenticate, then requests the provider's dynamic model list.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				cfg, err := s.Registry.GetConfig(cmd.Context())
				if err != nil {
					return err
				}
				if err := cfg.Merge(s.Config().ProviderSettings()); err != nil {
					return err
				}
				models, err := s.Registry.FetchModelsForProvider(cmd.Context(), args[0], cfg)
				if err != nil {
					return err
				}
				return printModels(cmd, ctx, models)
			})
		},
	}
}

func printModels(cmd *cobra.Command, ctx *commandContext, models []registry.Model) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, models)
	}
	if len(models) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No models")
		return nil
	}
	rows := make([][]string, 0, len(models))
	for _, model := range models {
		rows = append(rows, []string{model.ModelID, model.Provider, model.Family, model.Label(), strings.Join(model.Tags, ", ")})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"model", "provider", "family", "name", "tags"}, rows, nil))
	return nil
}
