package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"keroro/internal/workflow"
)

type stepEdit struct {
	uses       []string
	settings   []string
	paramsJSON string
	retry      int
	retryDelay float64
	timeout    float64
	whenFrom   string
	whenField  string
	whenOp     string
	whenValue  string
	clearWhen  bool
}

var (
	whenFlags     = []string{"when-from", "when-field", "when-op", "when-value"}
	stepEditFlags = append([]string{"uses", "set", "params", "retry", "retry-delay", "timeout", "clear-when"}, whenFlags...)
)

func newWorkflowSetCommand(ctx *commandContext) *cobra.Command {
	var edit stepEdit

	cmd := &cobra.Command{
		Use:   "set <step-id>",
		Short: "Change parameters, inputs, retry or condition of an existing step",
		Long: `Edits a step in place and keeps its id, so references from other steps
stay valid. Only the flags that are given are changed.

A condition skips the step unless the named field of an earlier step
compares as expected. --when-op defaults to contains for a new condition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !anyChanged(cmd, stepEditFlags...) {
				return errors.New("nothing to change; pass at least one flag (see --help)")
			}
			if edit.clearWhen && anyChanged(cmd, whenFlags...) {
				return errors.New("--clear-when cannot be combined with --when-* flags")
			}
			if flags.Changed("when-op") && !workflow.ConditionOp(edit.whenOp).Valid() {
				return fmt.Errorf("--when-op %q is not a known operator", edit.whenOp)
			}
			if flags.Changed("retry") && (edit.retry < 0 || edit.retry > 10) {
				return fmt.Errorf("--retry must be between 0 and 10, got %d", edit.retry)
			}
			path, err := ctx.workflowPath()
			if err != nil {
				return err
			}
			var changed *workflow.Step
			_, err = updateWorkflow(cmd.Context(), path, func(doc *workflow.Document) error {
				index := doc.StepIndex(args[0])
				if index < 0 {
					return fmt.Errorf("step %s not found", args[0])
				}
				step := doc.Steps[index]
				if err := edit.apply(cmd, step); err != nil {
					return err
				}
				changed = step
				return nil
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, changed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated step %s (%s)\n", changed.ID, changed.DisplayName())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&edit.uses, "uses", nil, "Replace the step ids or slots this step consumes (empty clears)")
	flags.StringArrayVar(&edit.settings, "set", nil, "Parameter override as key=value (repeatable)")
	flags.StringVar(&edit.paramsJSON, "params", "", "Parameter overrides as a JSON object")
	flags.IntVar(&edit.retry, "retry", 0, "Retries after a failed attempt (0-10)")
	flags.Float64Var(&edit.retryDelay, "retry-delay", 0, "Seconds between retries")
	flags.Float64Var(&edit.timeout, "timeout", 0, "Step timeout in seconds (0 clears)")
	flags.StringVar(&edit.whenFrom, "when-from", "", "Condition: step whose output is checked")
	flags.StringVar(&edit.whenField, "when-field", "", "Condition: output field to check")
	flags.StringVar(&edit.whenOp, "when-op", "", "Condition: contains, equals, starts_with, ends_with, not_contains, not_equals, exists, not_exists")
	flags.StringVar(&edit.whenValue, "when-value", "", "Condition: expected value")
	flags.BoolVar(&edit.clearWhen, "clear-when", false, "Remove the step's condition")
	return cmd
}

func (e *stepEdit) apply(cmd *cobra.Command, step *workflow.Step) error {
	flags := cmd.Flags()
	if err := applyParams(step, e.paramsJSON, e.settings); err != nil {
		return err
	}
	if flags.Changed("uses") {
		step.Uses = trimmedIDs(e.uses)
	}
	if flags.Changed("retry") {
		step.Retry = e.retry
	}
	if flags.Changed("retry-delay") {
		delay := e.retryDelay
		step.RetryDelay = &delay
	}
	if flags.Changed("timeout") {
		if e.timeout > 0 {
			timeout := e.timeout
			step.Timeout = &timeout
		} else {
			step.Timeout = nil
		}
	}
	switch {
	case e.clearWhen:
		step.When = nil
	case anyChanged(cmd, whenFlags...):
		cond := workflow.Condition{Op: workflow.OpContains}
		if step.When != nil {
			cond = *step.When
		}
		if flags.Changed("when-from") {
			cond.FromStep = strings.TrimSpace(e.whenFrom)
		}
		if flags.Changed("when-field") {
			cond.Field = strings.TrimSpace(e.whenField)
		}
		if flags.Changed("when-op") {
			cond.Op = workflow.ConditionOp(e.whenOp)
		}
		if flags.Changed("when-value") {
			cond.Value = e.whenValue
		}
		if cond.FromStep == step.ID {
			return fmt.Errorf("step %s cannot be conditioned on itself", step.ID)
		}
		step.When = &cond
	}
	return nil
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func trimmedIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
