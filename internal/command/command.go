// Package command holds the scaffolding cmd/crypto-tracer's five
// subcommands share: the GlobalParams struct threaded through every
// subcommand closure, mirroring the teacher's per-binary GlobalParams
// pattern (SPEC_FULL.md section A.2/D).
package command

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcoeg/crypto-tracer/internal/config"
)

// GlobalParams holds the flags shared by every subcommand: where to load
// configuration from, how verbosely to log, and where (if anywhere) to
// expose Prometheus metrics.
type GlobalParams struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// BindGlobalFlags registers the shared flags on cmd's persistent flag set
// and returns the GlobalParams they will populate once cobra parses args.
func BindGlobalFlags(cmd *cobra.Command) *GlobalParams {
	p := &GlobalParams{}
	flags := cmd.PersistentFlags()
	flags.StringVar(&p.ConfigPath, "config", config.DefaultConfigPath, "path to YAML config file")
	flags.StringVar(&p.LogLevel, "log-level", "info", "log severity: debug, info, warn, error")
	flags.StringVar(&p.LogFormat, "log-format", "json", "log output format: json or console")
	flags.StringVar(&p.MetricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on (empty disables)")
	return p
}

// Resolve loads configuration for the given subcommand's own flag set,
// layering config-file defaults under whatever flags were actually set.
func (p *GlobalParams) Resolve(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(p.ConfigPath, flags)
}
