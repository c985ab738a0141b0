// Command vpoctl is the thin CLI front end for vpod: it dials the
// daemon's Unix socket and renders job queue state. Grounded on
// five82-spindle's cmd/spindle, generalized from a disc-queue CLI to a
// job-queue CLI and re-skinned onto go-pretty's table renderer (spec §2
// DOMAIN STACK) instead of the teacher's hand-rolled box-drawing.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"spindle/internal/config"
	"spindle/internal/ipc"
	"spindle/internal/queueaccess"
	"spindle/internal/store"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	root := &cobra.Command{
		Use:           "vpoctl",
		Short:         "vpo daemon control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if socketFlag != "" {
				return nil
			}
			cfg, _, _, err := config.Load(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			socketFlag = filepath.Join(cfg.Paths.LogDir, "vpod.sock")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&socketFlag, "socket", "", "path to the vpod socket")
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "configuration file path")

	root.AddCommand(
		newStatusCommand(&socketFlag, &configFlag),
		newQueueCommand(&socketFlag, &configFlag),
	)
	return root
}

// withAccess gives a command a queueaccess.Access, preferring a live vpod
// over its socket and falling back to opening the catalog store directly
// (pool-dependent operations like pause/resize then report errNoPool)
// when no daemon is listening — the same degraded-but-usable mode a
// one-shot script invocation needs. Grounded on queueaccess.OpenWithFallback.
func withAccess(socket, configPath string, fn func(context.Context, queueaccess.Access) error) error {
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return ipc.Dial(socket) },
		func() (*store.Store, error) {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			return store.Open(cfg.Paths.CatalogPath)
		},
	)
	if err != nil {
		return fmt.Errorf("connect to vpod: %w", err)
	}
	defer session.Close()
	return fn(context.Background(), session.Access)
}

func newStatusCommand(socket, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(*socket, *configPath, func(ctx context.Context, access queueaccess.Access) error {
				status, err := access.Status(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				state := "stopped"
				if status.Running {
					state = "running"
				}
				if status.Paused {
					state += ", paused"
				}
				fmt.Fprintf(out, "vpod: %s (workers: %d)\n", state, status.WorkerCount)
				fmt.Fprintf(out, "catalog: %s\n", status.CatalogPath)
				fmt.Fprintln(out)
				renderJobCounts(out, status.JobCounts)
				return nil
			})
		},
	}
}

func newQueueCommand(socket, configPath *string) *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "inspect and manage the job queue",
	}
	queue.AddCommand(
		newQueueListCommand(socket, configPath),
		newQueueRetryCommand(socket, configPath),
		newQueueCancelCommand(socket, configPath),
		newQueuePauseCommand(socket, configPath),
		newQueueUnpauseCommand(socket, configPath),
		newQueueHealthCommand(socket, configPath),
		newQueueWatchCommand(socket, configPath),
	)
	return queue
}
