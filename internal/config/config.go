// Package config layers crypto-tracer's tunables (spec section 9: pool
// capacity, poll batch size, poll timeout, program object paths, the
// cryptographic library allow-list, the redaction toggle, profile duration,
// output format) the way SPEC_FULL.md section A.2 describes: a single YAML
// file read by github.com/spf13/viper, with cobra flags bound on top so a
// flag always overrides a config-file value.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultConfigPath is the --config default. A missing file at this path is
// not an error: Load then uses the built-in defaults.
const DefaultConfigPath = "/etc/crypto-tracer/crypto-tracer.yaml"

// Config is the fully resolved set of tunables for one command invocation.
// The commands read PoolCapacity, PollBatch, PollTimeout, ProgramObjectPath
// and NoRedact from it. CryptoLibraries, ProfileTimeout, Format, LogLevel,
// LogFormat and MetricsAddr are decoded but not consulted: the commands take
// those settings from their own flags, and classification always uses
// buildinfo.CryptoLibraries.
type Config struct {
	PoolCapacity int           `mapstructure:"pool_capacity"`
	PollBatch    int           `mapstructure:"poll_batch"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`

	ProgramObjectPath string   `mapstructure:"program_object_path"`
	CryptoLibraries   []string `mapstructure:"crypto_libraries"`

	NoRedact       bool          `mapstructure:"no_redact"`
	ProfileTimeout time.Duration `mapstructure:"profile_duration"`
	Format         string        `mapstructure:"format"`

	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("pool_capacity", 1000)
	v.SetDefault("poll_batch", 100)
	v.SetDefault("poll_timeout", 10*time.Millisecond)
	v.SetDefault("program_object_path", "/usr/lib/crypto-tracer/tracing-programs.o")
	v.SetDefault("no_redact", false)
	v.SetDefault("profile_duration", 60*time.Second)
	v.SetDefault("format", "stream")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("metrics_addr", "")
}

// Load reads configPath (if it exists; a missing file at the default
// location is not an error) into a fresh viper.Viper, binds flags so any
// flag the user actually set takes precedence, and decodes the result.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("CRYPTO_TRACER")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
			if !missing || configPath != DefaultConfigPath {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
