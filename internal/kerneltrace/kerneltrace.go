// Package kerneltrace implements the boundary with the in-kernel tracing
// programs described in spec section 6.1. The programs themselves are an
// explicit non-goal (spec section 0): this package only decodes the fixed
// wire format they emit and exposes it as a Producer, the interface
// internal/pipeline drives.
package kerneltrace

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EventType is the wire-format event_type enum (spec section 6.1).
type EventType uint32

const (
	EventTypeFileOpen    EventType = 1
	EventTypeLibLoad     EventType = 2
	EventTypeProcessExec EventType = 3
	EventTypeProcessExit EventType = 4
	EventTypeAPICall     EventType = 5
)

// Header widths, in bytes, fixed by spec section 6.1.
const (
	commWidth         = 16
	fileOpenPathWidth = 256
	libPathWidth      = 256
	execCmdlineWidth  = 256
	apiFuncWidth      = 64
	apiLibWidth       = 64

	headerWidth = 8 + 4 + 4 + commWidth + 4 // timestamp_ns, pid, uid, comm, event_type
)

// RawEvent is the decoded form of one wire-format record: the shared header
// plus whichever kind-specific payload fields apply to EventType. Unused
// fields for a given EventType are left at their zero value.
type RawEvent struct {
	TimestampNs int64
	PID         uint32
	UID         uint32
	Comm        string
	EventType   EventType

	// FileOpen
	FileName      string
	OpenFlags     uint32
	SyscallResult int32

	// LibLoad
	LibPath string

	// ProcessExec
	ParentPID uint32
	Cmdline   string

	// ProcessExit
	ExitCode int32

	// ApiCall
	FunctionName string
	APILibrary   string
}

// ProducerStats reports the delivered/dropped counters spec section 6.1
// requires be exposed as a statistics query.
type ProducerStats struct {
	Delivered uint64
	Dropped   uint64
}

// Producer is the external collaborator boundary spec section 6.1 treats as
// given: something that yields decoded RawEvents from the kernel ring
// buffer and reports how many it has dropped.
//
// Poll blocks for up to timeout waiting for at least one event, invoking cb
// once per delivered event (in arrival order) up to maxEvents before
// returning (spec section 5 step 1: "ask ... to deliver up to N events
// (target N=100) with a 10 ms timeout"). A 0-event return is a normal,
// non-error outcome (spec section 5: "a 0-event poll is indistinguishable
// from a timed-out poll except in statistics counters").
type Producer interface {
	Poll(maxEvents int, timeout time.Duration, cb func(*RawEvent)) (delivered int, err error)
	Stats() ProducerStats
	// BootTime returns the wall-clock instant corresponding to monotonic
	// time zero, so callers can translate a RawEvent's monotonic
	// TimestampNs (spec section 6.1) into a wall-clock nanosecond value
	// suitable for tsfmt.FormatTimestamp.
	BootTime() time.Time
	Close() error
}

// decodeRawEvent parses one ring-buffer record against the spec section 6.1
// layout. buf must contain at least the shared header; a short kind-specific
// payload (the producer's buffer was truncated) is tolerated by returning
// whatever fields fit, since a malformed single record must never take down
// the driver.
func decodeRawEvent(buf []byte) (*RawEvent, error) {
	if len(buf) < headerWidth {
		return nil, fmt.Errorf("kerneltrace: short record (%d bytes, need %d header)", len(buf), headerWidth)
	}
	le := binary.LittleEndian
	ev := &RawEvent{
		TimestampNs: int64(le.Uint64(buf[0:8])),
		PID:         le.Uint32(buf[8:12]),
		UID:         le.Uint32(buf[12:16]),
		Comm:        cString(buf[16 : 16+commWidth]),
		EventType:   EventType(le.Uint32(buf[16+commWidth : headerWidth])),
	}
	payload := buf[headerWidth:]

	switch ev.EventType {
	case EventTypeFileOpen:
		if len(payload) < fileOpenPathWidth+4+4 {
			return ev, nil
		}
		ev.FileName = cString(payload[:fileOpenPathWidth])
		rest := payload[fileOpenPathWidth:]
		ev.OpenFlags = le.Uint32(rest[0:4])
		ev.SyscallResult = int32(le.Uint32(rest[4:8]))
	case EventTypeLibLoad:
		if len(payload) < libPathWidth {
			return ev, nil
		}
		ev.LibPath = cString(payload[:libPathWidth])
	case EventTypeProcessExec:
		if len(payload) < 4+execCmdlineWidth {
			return ev, nil
		}
		ev.ParentPID = le.Uint32(payload[0:4])
		ev.Cmdline = cString(payload[4 : 4+execCmdlineWidth])
	case EventTypeProcessExit:
		if len(payload) < 4 {
			return ev, nil
		}
		ev.ExitCode = int32(le.Uint32(payload[0:4]))
	case EventTypeAPICall:
		if len(payload) < apiFuncWidth+apiLibWidth {
			return ev, nil
		}
		ev.FunctionName = cString(payload[:apiFuncWidth])
		ev.APILibrary = cString(payload[apiFuncWidth : apiFuncWidth+apiLibWidth])
	}
	return ev, nil
}

// cString trims a fixed-width NUL-padded byte field down to its string
// content, the way the kernel writes comm/filename/path fields.
func cString(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
