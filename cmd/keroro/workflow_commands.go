package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"keroro/internal/session"
	"keroro/internal/workflow"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Edit and inspect the local workflow document",
	}

	workflowCmd.AddCommand(newWorkflowNewCommand(ctx))
	workflowCmd.AddCommand(newWorkflowAddCommand(ctx))
	workflowCmd.AddCommand(newWorkflowSetCommand(ctx))
	workflowCmd.AddCommand(newWorkflowMoveCommand(ctx))
	workflowCmd.AddCommand(newWorkflowRemoveCommand(ctx))
	workflowCmd.AddCommand(newWorkflowPreviewCommand(ctx))
	workflowCmd.AddCommand(newWorkflowValidateCommand(ctx))
	workflowCmd.AddCommand(newWorkflowLintCommand(ctx))
	workflowCmd.AddCommand(newWorkflowRefsCommand(ctx))
	workflowCmd.AddCommand(newWorkflowKindsCommand(ctx))
	workflowCmd.AddCommand(newWorkflowSchemaCommand(ctx))
	workflowCmd.AddCommand(newWorkflowInputsCommand(ctx))
	workflowCmd.AddCommand(newWorkflowConnectCommand(ctx))

	return workflowCmd
}

func newWorkflowNewCommand(ctx *commandContext) *cobra.Command {
	var maxWorkers int
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty workflow document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.workflowPath()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-workers") {
				maxWorkers = ctx.config.Workflow.MaxWorkers
			}
			if maxWorkers < 1 || maxWorkers > 16 {
				return fmt.Errorf("--max-workers must be between 1 and 16")
			}
			if err := replaceWorkflow(cmd.Context(), path, workflow.NewDocument(maxWorkers), overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created workflow %s (max_workers=%d)\n", path, maxWorkers)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Concurrent items for the workflow (1-16)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing workflow file")
	return cmd
}

func newWorkflowAddCommand(ctx *commandContext) *cobra.Command {
	var uses []string
	var settings []string
	var paramsJSON string
	var retry int
	var retryDelay float64
	var timeout float64

	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Append a step with default parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := workflow.ParseKind(args[0])
			if err != nil {
				return err
			}
			path, err := ctx.workflowPath()
			if err != nil {
				return err
			}
			var added *workflow.Step
			_, err = updateWorkflow(cmd.Context(), path, func(doc *workflow.Document) error {
				step, err := doc.AddStep(kind)
				if err != nil {
					return err
				}
				if err := applyParams(step, paramsJSON, settings); err != nil {
					return err
				}
				step.Uses = append(step.Uses, uses...)
				step.Retry = retry
				if cmd.Flags().Changed("retry-delay") {
					step.RetryDelay = &retryDelay
				}
				if cmd.Flags().Changed("timeout") {
					step.Timeout = &timeout
				}
				added = step
				return nil
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, added)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added step %s (%s)\n", added.ID, added.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&uses, "uses", nil, "Step ids or slots (slot1-slot4) this step consumes")
	cmd.Flags().StringArrayVar(&settings, "set", nil, "Parameter override as key=value (repeatable)")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "Parameter overrides as a JSON object")
	cmd.Flags().IntVar(&retry, "retry", 0, "Retries after a failed attempt")
	cmd.Flags().Float64Var(&retryDelay, "retry-delay", 0, "Seconds between retries (default 3 when --retry is set)")
	cmd.Flags().Float64Var(&timeout, "timeout", 0, "Step timeout in seconds")
	return cmd
}

func newWorkflowMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <step-id> <up|down>",
		Short: "Swap a step with its neighbour",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := parseDirection(args[1])
			if err != nil {
				return err
			}
			path, err := ctx.workflowPath()
			if err != nil {
				return err
			}
			_, err = updateWorkflow(cmd.Context(), path, func(doc *workflow.Document) error {
				index := doc.StepIndex(args[0])
				if index < 0 {
					return fmt.Errorf("step %s not found", args[0])
				}
				if !doc.MoveStep(index, direction) {
					return fmt.Errorf("step %s cannot move %s", args[0], args[1])
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved step %s %s\n", args[0], args[1])
			return nil
		},
	}
}

func parseDirection(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "-1":
		return -1, nil
	case "down", "+1", "1":
		return 1, nil
	default:
		return 0, fmt.Errorf("direction must be up or down, got %q", raw)
	}
}

func newWorkflowRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <step-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a step",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.workflowPath()
			if err != nil {
				return err
			}
			doc, err := updateWorkflow(cmd.Context(), path, func(doc *workflow.Document) error {
				index := doc.StepIndex(args[0])
				if index < 0 {
					return fmt.Errorf("step %s not found", args[0])
				}
				doc.RemoveStep(index)
				return nil
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed step %s\n", args[0])
			for _, ref := range doc.DanglingReferences() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: step %s still references %s in %s\n", ref.StepID, ref.Target, ref.Field)
			}
			return nil
		},
	}
}

func newWorkflowPreviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Print the payload that would be submitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			preview, err := doc.Preview()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), preview)
			return nil
		},
	}
}

func newWorkflowValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the workflow structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"valid": true, "steps": len(doc.Steps)})
			}
			rows := make([][]string, 0, len(doc.Steps))
			for i, step := range doc.Steps {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					step.ID,
					step.DisplayName(),
					strings.Join(workflow.Summary(step), " · "),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable([]string{"#", "id", "step", "settings"}, rows, []columnAlignment{alignRight}))
			fmt.Fprintf(out, "Workflow valid: %d steps\n", len(doc.Steps))
			return nil
		},
	}
}

func newWorkflowLintCommand(ctx *commandContext) *cobra.Command {
	var checkBindings bool

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check step parameters against their schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			findings, err := doc.Lint()
			if err != nil {
				return err
			}
			if checkBindings {
				extra, err := ctx.lintBindings(cmd, doc)
				if err != nil {
					return err
				}
				findings = append(findings, extra...)
			}
			if ctx.jsonOutput() {
				if findings == nil {
					findings = []workflow.Finding{}
				}
				if err := writeJSON(cmd, findings); err != nil {
					return err
				}
			} else if len(findings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No lint findings")
			} else {
				rows := make([][]string, 0, len(findings))
				for _, finding := range findings {
					rows = append(rows, []string{finding.StepID, finding.Field, finding.Message})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"step", "field", "message"}, rows, nil))
			}
			if len(findings) > 0 {
				return fmt.Errorf("%d lint findings", len(findings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkBindings, "bindings", false, "Also check runninghub_app bindings against the webapp's inputs (queries the backend)")
	return cmd
}

func (c *commandContext) lintBindings(cmd *cobra.Command, doc *workflow.Document) ([]workflow.Finding, error) {
	var findings []workflow.Finding
	err := c.withSession(func(s *session.Session) error {
		for _, step := range doc.Steps {
			params, ok := step.Params.(*workflow.RunningHubAppParams)
			if !ok || params == nil || strings.TrimSpace(params.WebAppID) == "" {
				continue
			}
			inputs := s.Registry.DescribeRunningHubApp(cmd.Context(), params.WebAppID)
			if inputs.Fallback {
				continue
			}
			stepFindings, err := inputs.CheckBindings(bindingsOf(params))
			if err != nil {
				return err
			}
			for _, finding := range stepFindings {
				finding.StepID = step.ID
				findings = append(findings, finding)
			}
		}
		return nil
	})
	return findings, err
}

func newWorkflowRefsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "List references to steps that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			refs := doc.DanglingReferences()
			if ctx.jsonOutput() {
				if refs == nil {
					refs = []workflow.Reference{}
				}
				return writeJSON(cmd, refs)
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dangling references")
				return nil
			}
			rows := make([][]string, 0, len(refs))
			for _, ref := range refs {
				rows = append(rows, []string{ref.StepID, ref.Field, ref.Target})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"step", "field", "missing target"}, rows, nil))
			return nil
		},
	}
}

type kindView struct {
	Kind        workflow.Kind `json:"type"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Legacy      bool          `json:"legacy,omitempty"`
}

func newWorkflowKindsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "kinds",
		Short:       "List available step kinds",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := workflow.Kinds()
			views := make([]kindView, 0, len(kinds))
			for _, kind := range kinds {
				views = append(views, kindView{
					Kind:        kind,
					Name:        kind.DisplayName(),
					Category:    kind.Category(),
					Description: kind.Description(),
					Legacy:      kind.Legacy(),
				})
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, views)
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				name := view.Name
				if view.Legacy {
					name += " (旧版)"
				}
				rows = append(rows, []string{string(view.Kind), name, view.Category, view.Description})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"type", "name", "category", "description"}, rows, nil))
			return nil
		},
	}
}

func newWorkflowSchemaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "schema <kind>",
		Short:       "Print the JSON Schema of a kind's parameters",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := workflow.ParseKind(args[0])
			if err != nil {
				return err
			}
			schema, err := workflow.ParamSchema(kind)
			if err != nil {
				return err
			}
			return writeJSON(cmd, schema)
		},
	}
}

type fieldView struct {
	Direction string `json:"direction"`
	workflow.Field
}

func newWorkflowInputsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inputs <step-id>",
		Short: "Show a step's input and output fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			step, ok := doc.Step(args[0])
			if !ok {
				return fmt.Errorf("step %s not found", args[0])
			}
			var inputs []workflow.Field
			if workflow.HasDynamicInputs(step.Kind) {
				err = ctx.withSession(func(s *session.Session) error {
					inputs = workflow.ResolveInputs(cmd.Context(), s.Registry, step)
					return nil
				})
				if err != nil {
					return err
				}
			} else {
				inputs = workflow.Inputs(step.Kind)
			}
			views := make([]fieldView, 0, len(inputs))
			for _, field := range inputs {
				views = append(views, fieldView{Direction: "input", Field: field})
			}
			for _, field := range workflow.Outputs(step.Kind) {
				views = append(views, fieldView{Direction: "output", Field: field})
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, views)
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{view.Direction, view.Name, string(view.Type), yesNo(view.Optional), view.Description})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"direction", "name", "type", "optional", "description"}, rows, nil))
			return nil
		},
	}
}

func newWorkflowConnectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <from-step> <output> <to-step> <input>",
		Short: "Check whether an output can feed an input",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			from, _ := doc.Step(args[0])
			to, _ := doc.Step(args[2])
			var result workflow.ConnectionResult
			check := func(resolver workflow.InputResolver) {
				result = workflow.CheckConnection(cmd.Context(), resolver, from, args[1], to, args[3])
			}
			if to != nil && workflow.HasDynamicInputs(to.Kind) {
				if err := ctx.withSession(func(s *session.Session) error {
					check(s.Registry)
					return nil
				}); err != nil {
					return err
				}
			} else {
				check(nil)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			if !result.Valid {
				return errors.New(result.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s -> %s.%s is compatible\n", args[0], args[1], args[2], args[3])
			return nil
		},
	}
}

func (c *commandContext) loadWorkflow() (*workflow.Document, error) {
	path, err := c.workflowPath()
	if err != nil {
		return nil, err
	}
	return loadWorkflow(path)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
