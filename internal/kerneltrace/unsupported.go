//go:build !linux

package kerneltrace

import (
	"fmt"
	"time"

	"github.com/marcoeg/crypto-tracer/internal/tracererr"
)

// RingbufProducer is unavailable outside Linux; Load and Poll return
// tracererr.ErrKernelUnsupported so the command layer can map it to the
// fixed exit code (spec section 6.4) without a platform-specific branch.
// Stats, BootTime and Close return zero values.
type RingbufProducer struct{}

// Load always fails on a non-Linux host: there is no ring buffer or BPF
// subsystem to attach to.
func Load(objectPath string) (*RingbufProducer, error) {
	return nil, fmt.Errorf("kerneltrace: %w", tracererr.ErrKernelUnsupported)
}

func (p *RingbufProducer) Poll(maxEvents int, timeout time.Duration, cb func(*RawEvent)) (int, error) {
	return 0, fmt.Errorf("kerneltrace: %w", tracererr.ErrKernelUnsupported)
}

func (p *RingbufProducer) Stats() ProducerStats { return ProducerStats{} }

func (p *RingbufProducer) BootTime() time.Time { return time.Time{} }

func (p *RingbufProducer) Close() error { return nil }
