// Package enrich implements the Enricher component from spec section 4.D: it
// populates process_name, executable_path and (for ProcessExec events only)
// command_line on an event.Record by reading the process filesystem.
//
// Missing, unreadable or disappeared processes must not fail the pipeline;
// partial enrichment is the defined success mode (each miss is logged at
// debug level with the reader's error, never propagated as a command failure).
package enrich

import (
	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/procfsadapter"
)

// Enricher reads process metadata through a procfsadapter.Reader.
type Enricher struct {
	reader procfsadapter.Reader
	logger *zap.Logger
}

// New constructs an Enricher over reader. logger may be nil, in which case
// enrichment misses are silently dropped (still a valid outcome per spec).
func New(reader procfsadapter.Reader, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{reader: reader, logger: logger}
}

// Enrich fills rec's process_name, executable_path and (for KindProcessExec)
// command_line from /proc/<rec.PID>. Already-populated fields are never
// overwritten, matching the contract that a producer-supplied hint (e.g. the
// kernel's 16-byte comm field) takes precedence over a re-read.
func (e *Enricher) Enrich(rec *event.Record) {
	pid := int(rec.PID)

	if rec.ProcessName == "" {
		if name, err := e.reader.ReadShortName(pid); err == nil {
			rec.ProcessName = name
		} else {
			e.logger.Debug("enrichment missing: short name", zap.Int("pid", pid), zap.Error(err))
		}
	}

	if rec.ExecutablePath == "" {
		if exe, err := e.reader.ReadExeLink(pid); err == nil {
			rec.ExecutablePath = exe
		} else {
			e.logger.Debug("enrichment missing: exe link", zap.Int("pid", pid), zap.Error(err))
		}
	}

	if rec.Kind == event.KindProcessExec && rec.CommandLine == "" {
		if cmdline, err := e.reader.ReadArgVector(pid); err == nil {
			rec.CommandLine = cmdline
		} else {
			e.logger.Debug("enrichment missing: arg vector", zap.Int("pid", pid), zap.Error(err))
		}
	}
}
