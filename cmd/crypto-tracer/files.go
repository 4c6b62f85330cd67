package main

import (
	"github.com/spf13/cobra"

	"github.com/marcoeg/crypto-tracer/internal/command"
	"github.com/marcoeg/crypto-tracer/internal/event"
)

func newFilesCommand(globals *command.GlobalParams) *cobra.Command {
	f := &monitorFlags{}
	kind := event.KindFileOpen
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Stream only file-open events (monitor pre-seeded with a FileOpen-only filter)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, globals, f, &kind)
		},
	}
	addMonitorFlags(cmd, f, "pretty")
	return cmd
}
