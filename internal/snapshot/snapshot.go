// Package snapshot implements the Snapshot Builder from spec section 4.I: a
// one-shot, time-bounded enumeration of every process currently holding
// cryptographic libraries or files, bypassing the kernel producer entirely.
package snapshot

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/classify"
	"github.com/marcoeg/crypto-tracer/internal/privacy"
	"github.com/marcoeg/crypto-tracer/internal/procfsadapter"
)

// WallClockBudget is the hard bound on a whole snapshot walk (spec
// section 4.I step 5).
const WallClockBudget = 5 * time.Second

// ProcessRecord is one retained process entry.
type ProcessRecord struct {
	PID            int
	Name           string
	ExecutablePath string
	RunningAs      string
	LibraryPaths   []string
	FilePaths      []string
}

// Summary totals the snapshot's contents.
type Summary struct {
	ProcessCount int
	LibraryCount int
	FileCount    int
}

// Snapshot is the system-wide inventory document (spec section 3).
type Snapshot struct {
	Hostname    string
	Kernel      string
	Processes   []ProcessRecord
	Summary     Summary
	GeneratedAt int64
	VersionTag  string
	Partial     bool // true if the wall-clock budget was hit
}

// HostInfo supplies the host identity fields; internal/snapshot does not
// import gopsutil directly so it stays testable without touching the host.
type HostInfo struct {
	Hostname string
	Kernel   string
}

// Builder walks the process filesystem looking for cryptographic material.
type Builder struct {
	reader   procfsadapter.Reader
	redactor *privacy.Filter
	logger   *zap.Logger
}

// New constructs a Builder.
func New(reader procfsadapter.Reader, redactor *privacy.Filter, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{reader: reader, redactor: redactor, logger: logger}
}

// Build walks every process under /proc (step 1-3), applies privacy
// redaction to every retained path (step 4), and enforces the wall-clock
// budget (step 5): on timeout it emits what has been gathered so far as a
// valid, partial Snapshot rather than failing the command.
func (b *Builder) Build(ctx context.Context, host HostInfo, generatedAtNs int64) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, WallClockBudget)
	defer cancel()

	snap := Snapshot{
		Hostname:    host.Hostname,
		Kernel:      host.Kernel,
		GeneratedAt: generatedAtNs,
		VersionTag:  "1",
	}

	pids, err := b.reader.ListProcesses()
	if err != nil {
		b.logger.Warn("snapshot: list processes failed", zap.Error(err))
		return snap
	}
	sort.Ints(pids)

	for _, pid := range pids {
		select {
		case <-ctx.Done():
			b.logger.Warn("snapshot: wall-clock budget exceeded, emitting partial result",
				zap.Int("processes_seen", len(snap.Processes)))
			snap.Partial = true
			return b.finalize(snap)
		default:
		}

		rec, ok := b.inspect(pid)
		if ok {
			snap.Processes = append(snap.Processes, rec)
		}
	}

	return b.finalize(snap)
}

func (b *Builder) inspect(pid int) (ProcessRecord, bool) {
	libPaths, err := b.reader.ListMappedLibraryPaths(pid)
	if err != nil {
		libPaths = nil
	}
	filePaths, err := b.reader.ListOpenFilePaths(pid)
	if err != nil {
		filePaths = nil
	}

	var cryptoLibs []string
	for _, lib := range libPaths {
		if classify.IsCryptographic(lib, classify.LibraryShortName(lib)) {
			cryptoLibs = append(cryptoLibs, b.redactor.Redact(lib))
		}
	}

	var cryptoFiles []string
	for _, f := range filePaths {
		if classify.ClassifyFile(f) != classify.FileTypeUnknown {
			cryptoFiles = append(cryptoFiles, b.redactor.Redact(f))
		}
	}

	// Invariant: a process appears in the snapshot iff at least one of
	// {library set, file set} is non-empty (spec section 3).
	if len(cryptoLibs) == 0 && len(cryptoFiles) == 0 {
		return ProcessRecord{}, false
	}

	name, _ := b.reader.ReadShortName(pid)
	exe, _ := b.reader.ReadExeLink(pid)
	exe = b.redactor.Redact(exe)
	runningAs, _ := b.reader.ReadRunningAs(pid)

	return ProcessRecord{
		PID:            pid,
		Name:           name,
		ExecutablePath: exe,
		RunningAs:      runningAs,
		LibraryPaths:   cryptoLibs,
		FilePaths:      cryptoFiles,
	}, true
}

func (b *Builder) finalize(snap Snapshot) Snapshot {
	var libs, files int
	for _, p := range snap.Processes {
		libs += len(p.LibraryPaths)
		files += len(p.FilePaths)
	}
	snap.Summary = Summary{
		ProcessCount: len(snap.Processes),
		LibraryCount: libs,
		FileCount:    files,
	}
	return snap
}
