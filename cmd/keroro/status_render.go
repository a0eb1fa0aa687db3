package main

import (
	"fmt"
	"strings"

	"keroro/internal/jobs"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func statusColor(status jobs.Status) string {
	switch status {
	case jobs.StatusCompleted:
		return ansiGreen
	case jobs.StatusPartial, jobs.StatusCancelled:
		return ansiYellow
	case jobs.StatusFailed:
		return ansiRed
	case jobs.StatusQueued, jobs.StatusPending, jobs.StatusRunning:
		return ansiBlue
	default:
		return ""
	}
}

func renderStatus(job *jobs.Job, colorize bool) string {
	label := job.StatusText()
	if !colorize || job == nil {
		return label
	}
	if color := statusColor(job.Status); color != "" {
		return color + label + ansiReset
	}
	return label
}

// progressLine is the one-line job summary used by status and watch.
func progressLine(job *jobs.Job, colorize bool) string {
	if job == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", job.JobID, renderStatus(job, colorize))
	if job.Total > 0 {
		fmt.Fprintf(&b, " %d/%d %d%%", job.Done, job.Total, job.Progress())
	}
	if job.Failed > 0 {
		fmt.Fprintf(&b, " 失败 %d", job.Failed)
	}
	if msg := strings.TrimSpace(job.Message); msg != "" {
		fmt.Fprintf(&b, " - %s", msg)
	}
	return b.String()
}
