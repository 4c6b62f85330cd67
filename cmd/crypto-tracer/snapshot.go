package main

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/command"
	"github.com/marcoeg/crypto-tracer/internal/privacy"
	"github.com/marcoeg/crypto-tracer/internal/snapshot"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
	"github.com/marcoeg/crypto-tracer/internal/writer"
)

func newSnapshotCommand(globals *command.GlobalParams) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Enumerate every process currently holding cryptographic libraries or files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, globals, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format: pretty or array")
	return cmd
}

func runSnapshot(cmd *cobra.Command, globals *command.GlobalParams, formatStr string) error {
	deps, err := setupCommon(cmd, globals)
	if err != nil {
		return err
	}
	defer deps.logger.Sync()

	format, err := parseFormat(formatStr)
	if err != nil {
		return err
	}
	if format != writer.FormatPretty && format != writer.FormatArray {
		return fmt.Errorf("snapshot only supports pretty or array output: %w", tracererr.ErrArgument)
	}

	hostInfo := snapshot.HostInfo{}
	if info, err := host.Info(); err != nil {
		deps.logger.Warn("host identity lookup failed", zap.Error(err))
	} else {
		hostInfo.Hostname = info.Hostname
		hostInfo.Kernel = info.Platform + " " + info.PlatformVersion + " / " + info.KernelVersion
	}

	redactor := privacy.New(deps.cfg.NoRedact)
	builder := snapshot.New(deps.procfs, redactor, deps.logger)
	snap := builder.Build(cmd.Context(), hostInfo, nowNs())

	w := writer.New(os.Stdout, format)
	if err := w.WriteSnapshot(snap); err != nil {
		return fmt.Errorf("%w: %w", err, tracererr.ErrWrite)
	}
	return w.Finalize()
}
