package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/command"
	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
)

func newMonitorCommand(globals *command.GlobalParams) *cobra.Command {
	f := &monitorFlags{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream every traced event (file opens, library loads, process lifecycle, API calls)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, globals, f, nil)
		},
	}
	addMonitorFlags(cmd, f, "stream")
	return cmd
}

// runMonitor is shared by monitor, libs and files: kindFix is nil for
// monitor, and fixed to LibLoad/FileOpen for the other two (SPEC_FULL.md
// section C.3).
func runMonitor(cmd *cobra.Command, globals *command.GlobalParams, f *monitorFlags, kindFix *event.Kind) error {
	deps, err := setupCommon(cmd, globals)
	if err != nil {
		return err
	}
	defer deps.logger.Sync()
	defer deps.sd.Stop()

	format, err := parseFormat(f.format)
	if err != nil {
		return err
	}
	if f.noRedact {
		deps.cfg.NoRedact = true
	}

	driver, err := buildDriver(deps, format, os.Stdout, f.buildSet(kindFix))
	if err != nil {
		return err
	}
	defer driver.Producer.Close()

	if err := driver.RunMonitor(cmd.Context(), deps.sd); err != nil {
		deps.logger.Error("monitor failed", zap.Error(err))
		return fmt.Errorf("%w: %w", err, tracererr.ErrWrite)
	}

	stats := driver.Producer.Stats()
	deps.logger.Info("monitor finished",
		zap.Uint64("delivered", stats.Delivered),
		zap.Uint64("dropped", stats.Dropped))
	return nil
}
