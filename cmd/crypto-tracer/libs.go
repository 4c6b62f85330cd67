package main

import (
	"github.com/spf13/cobra"

	"github.com/marcoeg/crypto-tracer/internal/command"
	"github.com/marcoeg/crypto-tracer/internal/event"
)

func newLibsCommand(globals *command.GlobalParams) *cobra.Command {
	f := &monitorFlags{}
	kind := event.KindLibLoad
	cmd := &cobra.Command{
		Use:   "libs",
		Short: "Stream only library-load events (monitor pre-seeded with a LibLoad-only filter)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, globals, f, &kind)
		},
	}
	addMonitorFlags(cmd, f, "pretty")
	return cmd
}
