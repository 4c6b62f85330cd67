// Package tracererr defines the error contracts crypto-tracer propagates
// between the pipeline, the external collaborators and the command layer.
//
// Each sentinel corresponds to one of the kinds in spec section 7. Callers
// should use errors.Is against these sentinels rather than comparing strings.
package tracererr

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) to attach
// context; unwrap with errors.Is/errors.As.
var (
	// ErrArgument indicates a CLI argument failed validation.
	ErrArgument = errors.New("argument error")
	// ErrPrivilege indicates the process lacks the capabilities required to
	// attach tracing programs (commonly CAP_SYS_ADMIN/CAP_BPF).
	ErrPrivilege = errors.New("insufficient privilege")
	// ErrKernelUnsupported indicates the host kernel cannot run the required
	// BPF program types (missing ring buffer support, too old, etc).
	ErrKernelUnsupported = errors.New("unsupported kernel")
	// ErrTracingLoad indicates a tracing program failed verification or load.
	ErrTracingLoad = errors.New("tracing program load failure")
	// ErrPoolExhausted indicates the event pool's free list was empty.
	ErrPoolExhausted = errors.New("event pool exhausted")
	// ErrWrite indicates an I/O error on the writer's output sink.
	ErrWrite = errors.New("write error")
	// ErrEnrichmentMissing indicates process metadata could not be read;
	// never surfaced as a command failure (internal/enrich logs the reader's
	// own error instead of returning this sentinel).
	ErrEnrichmentMissing = errors.New("enrichment missing")
	// ErrTargetGone indicates a profiled process exited or never existed.
	ErrTargetGone = errors.New("target process gone")
)

// ExitCode maps an error produced by the command layer to the process exit
// code contract in spec section 6.4. Errors not wrapping one of the known
// sentinels map to the general failure code 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrArgument):
		return 2
	case errors.Is(err, ErrPrivilege):
		return 3
	case errors.Is(err, ErrKernelUnsupported):
		return 4
	case errors.Is(err, ErrTracingLoad):
		return 5
	default:
		return 1
	}
}
