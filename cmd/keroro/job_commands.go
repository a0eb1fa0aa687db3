package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"keroro/internal/jobs"
	"keroro/internal/logging"
	"keroro/internal/session"
	"keroro/internal/validation"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and follow backend jobs",
	}

	jobCmd.AddCommand(newJobSubmitCommand(ctx))
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobWatchCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobResultsCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))

	return jobCmd
}

func newJobSubmitCommand(ctx *commandContext) *cobra.Command {
	var inputs jobs.Inputs
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the workflow document as a new job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadWorkflow()
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session.Session) error {
				id, err := s.Jobs.Submit(cmd.Context(), inputs, doc)
				if err != nil {
					return err
				}
				if !watch {
					if ctx.jsonOutput() {
						return writeJSON(cmd, map[string]string{"job_id": id})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", id)
					return nil
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", id)
				}
				return watchJob(cmd, ctx, s, id)
			})
		},
	}

	cmd.Flags().StringVar(&inputs.Dir1, "dir1", "", "Input directory for image slot 1 (required)")
	cmd.Flags().StringVar(&inputs.Dir2, "dir2", "", "Input directory for image slot 2")
	cmd.Flags().StringVar(&inputs.Dir3, "dir3", "", "Input directory for image slot 3")
	cmd.Flags().StringVar(&inputs.Dir4, "dir4", "", "Input directory for image slot 4")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the job until it finishes")
	return cmd
}

// jobIDArg requires a single backend job id (eight hex digits).
var jobIDArg = cobra.MatchAll(cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
	return validation.RequireJobID(strings.TrimSpace(args[0]))
})

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job snapshot",
		Args:  jobIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				job, err := s.Jobs.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, progressLine(job, colorEnabled(cmd)))
				printErrorItems(out, job)
				return nil
			})
		},
	}
}

func newJobWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a job until it finishes",
		Args:  jobIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				return watchJob(cmd, ctx, s, args[0])
			})
		},
	}
}

// watchJob prints job progress until the poller stops. Terminals get every
// snapshot; other outputs get status changes and 10% steps only.
func watchJob(cmd *cobra.Command, ctx *commandContext, s *session.Session, id string) error {
	out := cmd.OutOrStdout()
	colorize := colorEnabled(cmd)
	sampler := logging.NewProgressSampler(10)
	if colorize {
		sampler = nil
	}
	var mu sync.Mutex
	s.OnJobUpdate(func(job *jobs.Job) {
		if ctx.jsonOutput() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if sampler.ShouldLog(job.Progress(), string(job.Status)) {
			fmt.Fprintln(out, progressLine(job, colorize))
		}
	})
	defer s.OnJobUpdate(nil)

	last, err := s.Watch(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Stopped watching %s; the job keeps running\n", id)
		}
		return err
	}
	if ctx.jsonOutput() {
		if last == nil {
			return writeJSON(cmd, map[string]any{"job_id": id, "status": nil})
		}
		return writeJSON(cmd, last)
	}
	if last == nil || !last.Status.Terminal() {
		return fmt.Errorf("lost track of job %s; check it later with `keroro job status %s`", id, id)
	}
	mu.Lock()
	printErrorItems(out, last)
	mu.Unlock()
	switch last.Status {
	case jobs.StatusFailed:
		return fmt.Errorf("job %s failed", id)
	case jobs.StatusCancelled:
		fmt.Fprintf(out, "Job %s was cancelled\n", id)
	}
	return nil
}

func printErrorItems(out io.Writer, job *jobs.Job) {
	if job == nil || len(job.ErrorItems) == 0 {
		return
	}
	keys := make([]string, 0, len(job.ErrorItems))
	for key := range job.ErrorItems {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, job.ErrorItems[key]})
	}
	fmt.Fprint(out, renderTable([]string{"item", "error"}, rows, nil))
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Ask the backend to cancel a job",
		Args:  jobIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				resp, err := s.Jobs.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobResultsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "results <job-id>",
		Short: "List per-item results of a job",
		Args:  jobIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				results, err := s.Jobs.Results(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, results)
				}
				if len(results.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results yet")
					return nil
				}
				rows := make([][]string, 0, len(results.Items))
				for _, item := range results.Items {
					rows = append(rows, []string{itemText(item["key"]), itemText(item["status"]), itemText(item["outputs"])})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"item", "status", "outputs"}, rows, nil))
				return nil
			})
		},
	}
}

func itemText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show job history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				list, err := s.Jobs.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				colorize := colorEnabled(cmd)
				rows := make([][]string, 0, len(list))
				for i := range list {
					job := &list[i]
					rows = append(rows, []string{
						job.JobID,
						renderStatus(job, colorize),
						fmt.Sprintf("%d/%d", job.Done, job.Total),
						strconv.Itoa(job.Failed),
						formatTime(job.Created()),
						strings.TrimSpace(job.Message),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"job", "status", "progress", "failed", "created", "message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
