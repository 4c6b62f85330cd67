//go:build linux

package kerneltrace

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sys/unix"

	"github.com/marcoeg/crypto-tracer/internal/tracererr"
)

// computeBootTime derives the wall-clock instant corresponding to
// CLOCK_MONOTONIC zero, the way other_examples' nerrf tracker converts
// ring-buffer monotonic timestamps into human-readable ones.
func computeBootTime() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Time{}, fmt.Errorf("clock_gettime: %w", err)
	}
	monoNs := ts.Sec*1_000_000_000 + ts.Nsec
	return time.Now().Add(-time.Duration(monoNs) * time.Nanosecond), nil
}

// attachSpec names one BPF program and how it attaches to the kernel,
// mirroring the five tracing programs implied by spec section 6.1's event
// taxonomy (file_open, lib_load, process_exec, process_exit, api_call).
// The programs themselves live outside this module (spec section 0
// non-goal); this table only says how the Go side finds and attaches them
// in the shared ELF object.
type attachSpec struct {
	program string
	kind    string // "kprobe", "tracepoint", "uprobe"
	target  string
}

var programAttachTable = []attachSpec{
	{program: "trace_file_open", kind: "kprobe", target: "do_sys_openat2"},
	{program: "trace_lib_load", kind: "uprobe", target: "do_dlopen"},
	{program: "trace_process_exec", kind: "tracepoint", target: "sched_process_exec"},
	{program: "trace_process_exit", kind: "tracepoint", target: "sched_process_exit"},
	{program: "trace_api_call", kind: "uprobe", target: "SSL_read"},
}

const ringBufferMapName = "events"

// RingbufProducer is the Linux Producer: a cilium/ebpf collection loaded
// from objectPath, its programs attached per programAttachTable, consumed
// through the single shared ring buffer map named "events" (spec section
// 6.1: "a single-producer lock-free ring buffer of fixed capacity").
type RingbufProducer struct {
	coll     *ebpf.Collection
	links    []link.Link
	reader   *ringbuf.Reader
	bootTime time.Time

	delivered uint64
	dropped   uint64
}

// Load reads the compiled tracing-program object at objectPath, attaches
// every program in programAttachTable that is present in the object, and
// opens the shared ring buffer reader. Missing individual programs are
// skipped silently (a reduced tracing surface; Load does not report which)
// but the shared ring buffer map must exist.
func Load(objectPath string) (*RingbufProducer, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("remove memlock rlimit: %w: %w", err, tracererr.ErrPrivilege)
	}

	spec, err := ebpf.LoadCollectionSpec(objectPath)
	if err != nil {
		return nil, fmt.Errorf("load collection spec %s: %w: %w", objectPath, err, tracererr.ErrTracingLoad)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w: %w", err, tracererr.ErrTracingLoad)
	}

	eventsMap, ok := coll.Maps[ringBufferMapName]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("map %q not found in object: %w", ringBufferMapName, tracererr.ErrTracingLoad)
	}

	bootTime, err := computeBootTime()
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("compute boot time: %w", err)
	}

	p := &RingbufProducer{coll: coll, bootTime: bootTime}
	for _, a := range programAttachTable {
		prog, ok := coll.Programs[a.program]
		if !ok {
			continue
		}
		l, err := attach(a, prog)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("attach %s (%s %s): %w: %w", a.program, a.kind, a.target, err, tracererr.ErrTracingLoad)
		}
		p.links = append(p.links, l)
	}

	rd, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("open ring buffer reader: %w: %w", err, tracererr.ErrTracingLoad)
	}
	p.reader = rd
	return p, nil
}

func attach(a attachSpec, prog *ebpf.Program) (link.Link, error) {
	switch a.kind {
	case "kprobe":
		return link.Kprobe(a.target, prog, nil)
	case "tracepoint":
		category, name, err := splitTracepoint(a.target)
		if err != nil {
			return nil, err
		}
		return link.Tracepoint(category, name, prog, nil)
	case "uprobe":
		// Userland API probes (lib_load/api_call) would normally attach
		// against a discovered library path via link.OpenExecutable; the
		// discovery step is out of scope here (spec section 0 non-goal),
		// so unsupported on this path until a resolved target is wired in.
		return nil, errors.New("uprobe attachment requires a resolved executable path")
	default:
		return nil, fmt.Errorf("unknown attach kind %q", a.kind)
	}
}

func splitTracepoint(target string) (category, name string, err error) {
	switch target {
	case "sched_process_exec", "sched_process_exit":
		return "sched", target, nil
	default:
		return "", "", fmt.Errorf("no tracepoint category known for %q", target)
	}
}

// Poll blocks for up to timeout reading buffered records off the ring
// buffer reader, decoding and delivering each via cb. It implements the
// Producer interface's "0-event poll is indistinguishable from a timeout"
// contract by treating ringbuf's deadline-exceeded error as a clean,
// zero-event return rather than a failure.
func (p *RingbufProducer) Poll(maxEvents int, timeout time.Duration, cb func(*RawEvent)) (int, error) {
	if err := p.reader.SetDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	delivered := 0
	for delivered < maxEvents {
		record, err := p.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return delivered, err
			}
			if isTimeout(err) {
				return delivered, nil
			}
			return delivered, fmt.Errorf("ring buffer read: %w", err)
		}

		ev, err := decodeRawEvent(record.RawSample)
		if err != nil {
			atomic.AddUint64(&p.dropped, 1)
			continue
		}
		atomic.AddUint64(&p.delivered, 1)
		delivered++
		cb(ev)

		// Once something has arrived, drain whatever else is immediately
		// available (up to maxEvents) without re-blocking on the timeout,
		// then return to let the driver run its own iteration boundary
		// (spec section 5: cancellation checked at iteration boundaries).
		if err := p.reader.SetDeadline(time.Now()); err != nil {
			return delivered, nil
		}
	}
	return delivered, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// BootTime returns the wall-clock instant corresponding to monotonic zero,
// computed once at Load time.
func (p *RingbufProducer) BootTime() time.Time { return p.bootTime }

// Stats returns the running delivered/dropped counters (spec section 6.1).
func (p *RingbufProducer) Stats() ProducerStats {
	return ProducerStats{
		Delivered: atomic.LoadUint64(&p.delivered),
		Dropped:   atomic.LoadUint64(&p.dropped),
	}
}

// Close releases every attached link, the ring buffer reader and the
// collection. Safe to call on a partially constructed producer.
func (p *RingbufProducer) Close() error {
	var firstErr error
	if p.reader != nil {
		if err := p.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, l := range p.links {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.coll != nil {
		p.coll.Close()
	}
	return firstErr
}
