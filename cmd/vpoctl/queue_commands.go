package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"spindle/internal/ipc"
	"spindle/internal/queueaccess"
)

func newQueueListCommand(socket, configPath *string) *cobra.Command {
	var status, jobType string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list queued and recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				jobs, err := access.JobList(ctx, ipc.JobListRequest{
					Status: status, JobType: jobType, SortBy: "created_at", Descending: true, Limit: limit,
				})
				if err != nil {
					return err
				}
				renderJobTable(cmd.OutOrStdout(), jobs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().StringVar(&jobType, "type", "", "filter by job type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to return")
	return cmd
}

func newQueueRetryCommand(socket, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "re-enqueue a failed or cancelled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				job, err := access.JobRetry(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retried as job %s\n", job.ID)
				return nil
			})
		},
	}
}

func newQueueCancelCommand(socket, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				cancelled, err := access.JobCancel(ctx, args[0])
				if err != nil {
					return err
				}
				if cancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "job %s cancelled\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "job %s was not cancelled\n", args[0])
				}
				return nil
			})
		},
	}
}

func newQueuePauseCommand(socket, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "stop the worker pool from claiming new jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				if _, err := access.Pause(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "paused")
				return nil
			})
		},
	}
}

func newQueueUnpauseCommand(socket, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unpause",
		Short: "resume claiming new jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				if _, err := access.Unpause(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "unpaused")
				return nil
			})
		},
	}
}

func newQueueHealthCommand(socket, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "show aggregate job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				health, err := access.QueueHealth(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "total:     %s\n", humanize.Comma(int64(health.Total)))
				fmt.Fprintf(out, "queued:    %s\n", humanize.Comma(int64(health.Queued)))
				fmt.Fprintf(out, "running:   %s\n", humanize.Comma(int64(health.Running)))
				fmt.Fprintf(out, "completed: %s\n", humanize.Comma(int64(health.Completed)))
				fmt.Fprintf(out, "failed:    %s\n", humanize.Comma(int64(health.Failed)))
				fmt.Fprintf(out, "cancelled: %s\n", humanize.Comma(int64(health.Cancelled)))
				return nil
			})
		},
	}
}

// newQueueWatchCommand polls a single job's progress until it reaches a
// terminal status, rendering a live bar.
func newQueueWatchCommand(socket, configPath *string) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "watch a job's progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				bar := progressbar.NewOptions(100,
					progressbar.OptionSetDescription(args[0]),
					progressbar.OptionSetWriter(cmd.OutOrStdout()),
					progressbar.OptionClearOnFinish(),
				)
				for {
					job, err := access.JobDescribe(ctx, args[0])
					if err != nil {
						return err
					}
					_ = bar.Set(int(job.ProgressPercent))
					if isTerminalJobStatus(job.Status) {
						bar.Finish()
						fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s\n", args[0], job.Status)
						return nil
					}
					time.Sleep(interval)
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "poll interval")
	return cmd
}

func isTerminalJobStatus(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	default:
		return false
	}
}

func renderJobCounts(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Status", "Count"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, humanize.Comma(int64(counts[k]))})
	}
	t.Render()
}

func renderJobTable(w io.Writer, jobs []ipc.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no jobs found")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if isPlainOutput(w) {
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateColumns = true
	}
	t.AppendHeader(table.Row{"ID", "Type", "Status", "File", "Plan", "Created", "Error"})
	for _, job := range jobs {
		created := job.CreatedAt
		if created != "" {
			created = strings.TrimSuffix(created, "Z")
		}
		fileID := "-"
		if job.FileID != nil {
			fileID = fmt.Sprintf("%d", *job.FileID)
		}
		planID := job.PlanID
		if planID == "" {
			planID = "-"
		}
		t.AppendRow(table.Row{job.ID, job.JobType, job.Status, fileID, planID, created, job.ErrorMessage})
	}
	t.Render()
}

// isPlainOutput reports whether w is a non-interactive sink (e.g. piped
// to a file or another program), in which case box-drawing characters
// only add noise.
func isPlainOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}
