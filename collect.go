package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCollectCmd runs one collection pass over every enabled watched
// resource and exits.
func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one permission-change collection pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.collector.CollectAll(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"collected %d event(s) from %d resource(s) (%d failed, %d duplicate(s), %d undelivered)\n",
				stats.Events, stats.Resources, stats.Failed, stats.Duplicates, stats.Undelivered)

			return nil
		},
	}
}
