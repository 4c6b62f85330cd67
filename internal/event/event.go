// Package event defines the canonical user-space event record (spec
// section 3) shared by every pipeline stage. The source's struct-with-many-
// optional-fields is kept as a single Record type (so the pool can manage one
// uniform shape) but Kind acts as the tag a sum type would use: callers
// should only read the fields relevant to rec.Kind, the way the writer's
// per-kind field ordering is a match over the kind (spec section 9).
package event

import "github.com/marcoeg/crypto-tracer/internal/classify"

// Kind identifies the traced occurrence a Record represents.
type Kind int

const (
	KindUnknown Kind = iota
	KindFileOpen
	KindLibLoad
	KindProcessExec
	KindProcessExit
	KindAPICall
)

// String renders the Kind the way it appears in structured output
// (event_type field, spec section 6.2).
func (k Kind) String() string {
	switch k {
	case KindFileOpen:
		return "file_open"
	case KindLibLoad:
		return "lib_load"
	case KindProcessExec:
		return "process_exec"
	case KindProcessExit:
		return "process_exit"
	case KindAPICall:
		return "api_call"
	default:
		return "unknown"
	}
}

// Record is the canonical event record. It is owned, between acquire and
// release, by exactly one caller (the pool enforces this); every string
// field is a value the holder owns and that release() clears.
type Record struct {
	Kind Kind
	// Timestamp is nanoseconds since the Unix epoch, wall-clock. Serialized
	// output truncates to microsecond resolution (tsfmt.FormatTimestamp);
	// the extra internal precision is kept because the kernel producer's
	// wire format (spec section 6.1) is nanosecond already and truncating
	// early would just throw away free precision for no benefit.
	Timestamp int64
	PID       uint32
	UID       uint32

	// Enriched from the process filesystem (internal/enrich); may remain
	// empty when enrichment fails (spec section 4.D, EnrichmentMissing is
	// silent).
	ProcessName    string
	ExecutablePath string
	CommandLine    string // only ever populated for KindProcessExec

	// FileOpen-specific.
	FilePath       string
	FileType       classify.FileType
	OpenFlags      uint32
	SyscallResult  int32

	// LibLoad-specific.
	LibraryPath      string
	LibraryShortName string

	// ApiCall-specific.
	FunctionName string

	// ProcessExec-specific (supplemented feature C.5: carried but not acted
	// on, per spec section 9 open question 2).
	ParentPID uint32

	// ProcessExit-specific.
	ExitCode int32
}

// ResetForRelease clears every field to its zero value, freeing any owned
// strings. Called by eventpool.Pool on release and destroy so a reused
// record never leaks a previous holder's data.
func (r *Record) ResetForRelease() {
	*r = Record{}
}
