// Command crypto-tracer is the CLI entrypoint tying the five modes from
// spec section 2 (monitor, profile, snapshot, libs, files) to the pipeline
// driver, following SPEC_FULL.md section D's command surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcoeg/crypto-tracer/internal/buildinfo"
	"github.com/marcoeg/crypto-tracer/internal/command"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(tracererr.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "crypto-tracer",
		Short:         "Trace and profile cryptographic material access on Linux",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate(fmt.Sprintf("%s\n", buildinfo.String()))

	globals := command.BindGlobalFlags(root)

	root.AddCommand(
		newMonitorCommand(globals),
		newProfileCommand(globals),
		newSnapshotCommand(globals),
		newLibsCommand(globals),
		newFilesCommand(globals),
	)
	return root
}
