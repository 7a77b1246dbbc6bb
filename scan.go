package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlaakso/sharewatch/internal/scheduler"
)

// scanWaitPoll is how often --wait checks for the job slot to drain.
const scanWaitPoll = 2 * time.Second

// newScanCmd groups the batch-scan subcommands.
func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Manage the group-share batch scan",
	}

	cmd.AddCommand(newScanStartCmd())
	cmd.AddCommand(newScanCancelCmd())
	cmd.AddCommand(newScanStatusCmd())

	return cmd
}

// newScanStartCmd enumerates directory groups and starts the batch scan.
func newScanStartCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Enumerate directory groups and start scanning their shares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.producer.BuildItems(cmd.Context())
			if err != nil {
				return err
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no directory groups found, nothing to scan")
				return nil
			}

			if err := a.scheduler.Start(cmd.Context(), items); err != nil {
				if errors.Is(err, scheduler.ErrAlreadyRunning) {
					return fmt.Errorf("a scan is already running; cancel it first or wait for it to finish")
				}

				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scan started: %d group(s) queued\n", len(items))

			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), "run under `sharewatch watch` (or rerun with --wait) to drive it to completion")
				return nil
			}

			return waitForDrain(cmd.Context(), a)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "stay alive until the scan drains")

	return cmd
}

// waitForDrain blocks until the job slot empties or the context ends. The
// in-process timer invoker drives the chunks; this loop only watches.
func waitForDrain(ctx context.Context, a *app) error {
	ticker := time.NewTicker(scanWaitPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			job, err := a.scheduler.Status(ctx)
			if err != nil {
				return err
			}

			if job == nil {
				return nil
			}
		}
	}
}

// newScanCancelCmd cancels the running scan.
func newScanCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler.Cancel(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "scan canceled")

			return nil
		},
	}
}

// newScanStatusCmd prints the job state and every recorded item status.
func newScanStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scan progress and per-group outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return printScanStatus(cmd.Context(), cmd, a)
		},
	}
}

// printScanStatus renders the job slot and the status table.
func printScanStatus(ctx context.Context, cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()

	job, err := a.scheduler.Status(ctx)
	if err != nil {
		return err
	}

	if job == nil {
		fmt.Fprintln(out, "scan: idle")
	} else {
		fmt.Fprintf(out, "scan: %s, %d/%d item(s) processed (job %s)\n",
			job.State, job.Cursor, len(job.Items), job.ID)
	}

	statuses, err := a.store.ListStatuses(ctx)
	if err != nil {
		return err
	}

	if len(statuses) == 0 {
		return nil
	}

	fmt.Fprintln(out)

	for _, s := range statuses {
		detail := s.Detail
		if detail != "" {
			detail = "  " + detail
		}

		fmt.Fprintf(out, "%-40s %-10s %s%s\n",
			s.Key, s.Status, s.UpdatedAt.UTC().Format(time.RFC3339), detail)
	}

	return nil
}
