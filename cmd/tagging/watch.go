package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tagging-mcp/internal/events"
)

func watchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print run events published by tagging servers (requires EVENTS_PROVIDER=nats)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := flags.deps(nil)
			if err != nil {
				return err
			}
			if _, ok := deps.Events.(events.Noop); ok {
				return fmt.Errorf("no event transport configured; set EVENTS_PROVIDER=nats and EVENTS_URL")
			}
			out := cmd.OutOrStdout()
			return deps.Events.Subscribe(cmd.Context(), func(_ context.Context, ev events.RunCompleted) error {
				_, err := fmt.Fprintf(out, "%s  %-16s %-8s %d/%d ok  %s/%s  %s\n",
					ev.FinishedAt.Format("2006-01-02T15:04:05Z07:00"), ev.Tool, ev.Status,
					ev.Succeeded, ev.Total, ev.Provider, ev.Model, ev.CSVPath)
				return err
			})
		},
	}
}
