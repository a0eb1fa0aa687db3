package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"keroro/internal/session"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Manage saved workflow templates",
	}

	templateCmd.AddCommand(newTemplateListCommand(ctx))
	templateCmd.AddCommand(newTemplateGetCommand(ctx))
	templateCmd.AddCommand(newTemplateSaveCommand(ctx))
	templateCmd.AddCommand(newTemplateDeleteCommand(ctx))

	return templateCmd
}

func newTemplateListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				templates, err := s.Registry.ListTemplates(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, templates)
				}
				if len(templates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved templates")
					return nil
				}
				rows := make([][]string, 0, len(templates))
				for _, tmpl := range templates {
					rows = append(rows, []string{string(tmpl.ID), tmpl.Name, tmpl.Description, strings.Join(tmpl.Tags, ", ")})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"id", "name", "description", "tags"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
}

func newTemplateGetCommand(ctx *commandContext) *cobra.Command {
	var load bool
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a template, or load it into the workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				tmpl, err := s.Registry.GetTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !load {
					return writeJSON(cmd, tmpl)
				}
				if tmpl.Workflow == nil {
					return fmt.Errorf("template %s has no workflow", args[0])
				}
				path, err := ctx.workflowPath()
				if err != nil {
					return err
				}
				doc := tmpl.Workflow.Normalize()
				if err := replaceWorkflow(cmd.Context(), path, doc, overwrite); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded template %q (%d steps) into %s\n", tmpl.Name, len(doc.Steps), path)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "Write the template's workflow to the workflow file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing workflow file when loading")
	return cmd
}

func newTemplateSaveCommand(ctx *commandContext) *cobra.Command {
	var name string
	var description string
	var tags []string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the workflow file as a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session.Session) error {
				saved, err := s.Registry.SaveTemplate(cmd.Context(), doc, name, description, tags)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, saved)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved template %q as %s\n", saved.Name, saved.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Template name (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Template description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Template tags (repeatable or comma separated)")
	return cmd
}

func newTemplateDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				resp, err := s.Registry.DeleteTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", args[0])
				return nil
			})
		},
	}
}
