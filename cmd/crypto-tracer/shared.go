package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/command"
	"github.com/marcoeg/crypto-tracer/internal/config"
	"github.com/marcoeg/crypto-tracer/internal/enrich"
	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/eventpool"
	"github.com/marcoeg/crypto-tracer/internal/filter"
	"github.com/marcoeg/crypto-tracer/internal/kerneltrace"
	"github.com/marcoeg/crypto-tracer/internal/lifecycle"
	"github.com/marcoeg/crypto-tracer/internal/logging"
	"github.com/marcoeg/crypto-tracer/internal/metrics"
	"github.com/marcoeg/crypto-tracer/internal/pipeline"
	"github.com/marcoeg/crypto-tracer/internal/privacy"
	"github.com/marcoeg/crypto-tracer/internal/procfsadapter"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
	"github.com/marcoeg/crypto-tracer/internal/writer"
)

// monitorFlags is shared by monitor, libs and files: they differ only in a
// fixed kind predicate (SPEC_FULL.md section C.3).
type monitorFlags struct {
	pid       uint32
	process   string
	library   string
	fileGlob  string
	format    string
	noRedact  bool
}

func addMonitorFlags(cmd *cobra.Command, f *monitorFlags, defaultFormat string) {
	flags := cmd.Flags()
	flags.Uint32Var(&f.pid, "pid", 0, "restrict to one process id (0 = all)")
	flags.StringVar(&f.process, "process", "", "restrict to processes whose name contains this substring")
	flags.StringVar(&f.library, "library", "", "restrict to libraries whose path or name contains this substring")
	flags.StringVar(&f.fileGlob, "file-glob", "", "restrict to files matching this path-aware glob")
	flags.StringVar(&f.format, "format", defaultFormat, "output format: stream, array, pretty or summary")
	flags.BoolVar(&f.noRedact, "no-redact", false, "disable path redaction")
}

func (f *monitorFlags) buildSet(kindFix *event.Kind) *filter.Set {
	set := filter.New()
	if f.pid != 0 {
		set.Add(filter.PID(f.pid))
	}
	if f.process != "" {
		set.Add(filter.ProcessSubstring{Substr: f.process})
	}
	if f.library != "" {
		set.Add(filter.LibrarySubstring{Substr: f.library})
	}
	if f.fileGlob != "" {
		set.Add(filter.FileGlob{Pattern: f.fileGlob})
	}
	if kindFix != nil {
		set.Add(filter.KindEquals{Kind: *kindFix})
	}
	return set
}

func parseFormat(s string) (writer.Format, error) {
	switch s {
	case "stream":
		return writer.FormatStream, nil
	case "array":
		return writer.FormatArray, nil
	case "pretty":
		return writer.FormatPretty, nil
	case "summary":
		return writer.FormatSummary, nil
	default:
		return 0, fmt.Errorf("unknown format %q: %w", s, tracererr.ErrArgument)
	}
}

// commonDeps holds the logger, config, metrics registry, signal handler and
// procfs adapter every subcommand constructs the same way.
type commonDeps struct {
	logger  *zap.Logger
	cfg     *config.Config
	metrics *metrics.Registry
	sd      *lifecycle.Shutdown
	procfs  *procfsadapter.FS
}

func setupCommon(cmd *cobra.Command, globals *command.GlobalParams) (*commonDeps, error) {
	cfg, err := globals.Resolve(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, tracererr.ErrArgument)
	}

	logger, err := logging.Build(globals.LogLevel, globals.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, tracererr.ErrArgument)
	}

	reg := metrics.New()
	if globals.MetricsAddr != "" {
		go func() {
			if err := reg.Serve(cmd.Context(), globals.MetricsAddr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	fs, err := procfsadapter.Open("")
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w: %w", err, tracererr.ErrPrivilege)
	}

	return &commonDeps{
		logger:  logger,
		cfg:     cfg,
		metrics: reg,
		sd:      lifecycle.New(),
		procfs:  fs,
	}, nil
}

// buildDriver wires a pipeline.Driver from resolved config, ready for
// RunMonitor or RunProfile.
func buildDriver(deps *commonDeps, format writer.Format, sink *os.File, filterSet *filter.Set) (*pipeline.Driver, error) {
	producer, err := kerneltrace.Load(deps.cfg.ProgramObjectPath)
	if err != nil {
		return nil, err
	}

	pool := eventpool.New(deps.cfg.PoolCapacity)
	return &pipeline.Driver{
		Producer:    producer,
		Pool:        pool,
		Enricher:    enrich.New(deps.procfs, deps.logger),
		Redactor:    privacy.New(deps.cfg.NoRedact),
		Filters:     filterSet,
		Writer:      writer.New(sink, format),
		Metrics:     deps.metrics,
		Logger:      deps.logger,
		PollBatch:   deps.cfg.PollBatch,
		PollTimeout: deps.cfg.PollTimeout,
	}, nil
}

func nowNs() int64 { return time.Now().UnixNano() }
