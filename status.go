package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newStatusCmd reports watermark positions and the batch-scan slot.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show collection watermarks and scan progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()

			marks, err := a.store.ListWatermarks(cmd.Context())
			if err != nil {
				return err
			}

			if len(marks) == 0 {
				fmt.Fprintln(out, "no watermarks recorded yet; run `sharewatch collect` first")
			} else {
				fmt.Fprintln(out, "watermarks:")

				for _, m := range marks {
					fmt.Fprintf(out, "  %-40s collected through %s (updated %s)\n",
						m.ResourceID,
						m.LastSeen.UTC().Format(time.RFC3339),
						m.UpdatedAt.UTC().Format(time.RFC3339))
				}
			}

			fmt.Fprintln(out)

			job, err := a.scheduler.Status(cmd.Context())
			if err != nil {
				return err
			}

			if job == nil {
				fmt.Fprintln(out, "scan: idle")
				return nil
			}

			fmt.Fprintf(out, "scan: %s, %d/%d item(s) processed (job %s)\n",
				job.State, job.Cursor, len(job.Items), job.ID)

			return nil
		},
	}
}
