package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"video-site/transcodes"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List queued transcode jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status transcodes.Status
			if statusFlag != "" {
				var err error
				if status, err = transcodes.ParseStatus(strings.ToLower(statusFlag)); err != nil {
					return err
				}
			}
			return ctx.withQueue(func(q *transcodes.Queue) error {
				jobs, err := q.List(cmd.Context(), status, limit)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, jobRow(job))
				}
				out := renderTable(
					[]string{"ID", "Status", "Video", "Attempts", "Progress", "Output", "Created", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show jobs in this status (pending, active, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to show, 0 for all")
	return cmd
}

func jobRow(job transcodes.QueuedJob) []string {
	progress, size := "", ""
	if p, err := job.LastProgress(); err == nil && p != nil {
		progress = fmt.Sprintf("%.1fs", p.Seconds)
		if p.Speed != "" {
			progress += " @ " + p.Speed
		}
		if p.TotalSize != nil && *p.TotalSize > 0 {
			size = humanize.Bytes(uint64(*p.TotalSize))
		}
	}
	return []string{
		job.ID,
		string(job.Status),
		strconv.FormatUint(uint64(job.VideoID), 10),
		strconv.Itoa(job.Attempts),
		progress,
		size,
		humanize.Time(job.CreatedAt),
		truncate(job.Error, 60),
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Return a completed or failed job to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q *transcodes.Queue) error {
				job, err := q.Requeue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued job %s (attempt %d next)\n", job.ID, job.Attempts+1)
				return nil
			})
		},
	}
}
