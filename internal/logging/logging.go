// Package logging constructs the zap.Logger every command builds from
// GlobalParams (spec section 0 ambient concern: "diagnostic severity
// levels", explicitly carried even though the spec's non-goals exclude log
// formatting beyond that).
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build constructs a zap.Logger at the given level ("debug", "info",
// "warn", "error") and format ("console" for human-readable development
// output, anything else for structured JSON).
func Build(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.DisableStacktrace = true

	return cfg.Build()
}
