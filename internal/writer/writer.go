// Package writer implements the Writer component from spec section 4.G: it
// turns event.Record, profile.Profile and snapshot.Snapshot values into the
// structured document shapes fixed by spec section 6.2, in one of four
// output formats.
package writer

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/marcoeg/crypto-tracer/internal/classify"
	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/profile"
	"github.com/marcoeg/crypto-tracer/internal/snapshot"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
	"github.com/marcoeg/crypto-tracer/internal/tsfmt"
)

// Format selects how the Writer renders documents.
type Format int

const (
	FormatStream Format = iota
	FormatArray
	FormatPretty
	FormatSummary
)

// Writer is constructed once per command and emits records/documents to a
// single output sink. It is not safe for concurrent use from more than one
// goroutine (the pipeline driver is single-threaded, spec section 5); the
// mutex below only guards Finalize's idempotency.
type Writer struct {
	mu          sync.Mutex
	sink        *bufio.Writer
	format      Format
	count       int
	arrayOpened bool
	finalized   bool
}

// New constructs a Writer over sink in the given format. The FormatArray/
// FormatPretty opening delimiter is NOT emitted here: it only brackets an
// event stream (WriteEvent), never the single bare document WriteProfile or
// WriteSnapshot emits (spec section 6.2; output_formatter.c's profile/
// snapshot dump is always one bare object, regardless of format flag).
func New(sink io.Writer, format Format) *Writer {
	return &Writer{sink: bufio.NewWriter(sink), format: format}
}

func (w *Writer) pretty() bool { return w.format == FormatPretty }

// writeSeparatedRecord writes the opening delimiter (on the first record) or
// the comma/newline separator (on subsequent ones) for array-shaped formats,
// then the rendered record. Only WriteEvent calls this; it is what scopes
// the array delimiters to the event stream.
func (w *Writer) writeSeparatedRecord(doc jval) error {
	if w.format == FormatArray || w.format == FormatPretty {
		if !w.arrayOpened {
			w.arrayOpened = true
			w.sink.WriteString("[")
			if w.pretty() {
				w.sink.WriteString("\n")
			}
		} else {
			w.sink.WriteString(",")
			if w.pretty() {
				w.sink.WriteString("\n")
			}
		}
	}
	if w.pretty() {
		w.sink.WriteString("  ")
	}
	w.sink.WriteString(marshal(doc, w.pretty()))
	w.count++

	if w.format == FormatStream {
		w.sink.WriteString("\n")
	}
	if err := w.sink.Flush(); err != nil {
		return fmt.Errorf("flush: %w: %w", err, tracererr.ErrWrite)
	}
	return nil
}

// WriteEvent emits one event record. Field ordering is fixed per kind (spec
// section 6.2): event_type, timestamp, pid, uid, process, exe, then the
// kind-specific fields in the order listed in spec section 3.
func (w *Writer) WriteEvent(rec *event.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.format == FormatSummary {
		w.count++
		return nil
	}
	return w.writeSeparatedRecord(eventObject(rec))
}

func eventObject(rec *event.Record) jObject {
	obj := jObject{
		{"event_type", jString(rec.Kind.String())},
		{"timestamp", jString(tsfmt.FormatTimestamp(rec.Timestamp))},
		{"pid", jUint(rec.PID)},
		{"uid", jUint(rec.UID)},
		{"process", jNullableString(rec.ProcessName)},
		{"exe", jNullableString(rec.ExecutablePath)},
	}

	switch rec.Kind {
	case event.KindFileOpen:
		obj = append(obj,
			jField{"file", jNullableString(rec.FilePath)},
			jField{"file_type", jString(rec.FileType.String())},
			jField{"flags", jString(classify.OpenMode(rec.OpenFlags))},
			jField{"result", jInt(int64(rec.SyscallResult))},
		)
	case event.KindLibLoad:
		obj = append(obj,
			jField{"library", jNullableString(rec.LibraryPath)},
			jField{"library_name", jNullableString(rec.LibraryShortName)},
		)
	case event.KindProcessExec:
		obj = append(obj,
			jField{"cmdline", jNullableString(rec.CommandLine)},
			jField{"parent_pid", jUint(rec.ParentPID)},
		)
	case event.KindProcessExit:
		obj = append(obj, jField{"exit_code", jInt(int64(rec.ExitCode))})
	case event.KindAPICall:
		obj = append(obj,
			jField{"function_name", jNullableString(rec.FunctionName)},
			jField{"library", jNullableString(rec.LibraryPath)},
		)
	}
	return obj
}

// WriteProfile emits the Profile document (spec section 6.2): a single
// structured object, not wrapped in the record-stream delimiters used by
// WriteEvent.
func (w *Writer) WriteProfile(p profile.Profile) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	obj := jObject{
		{"profile_version", jString(p.VersionTag)},
		{"generated_at", jString(tsfmt.FormatTimestamp(p.GeneratedAt))},
		{"duration_seconds", jInt(p.ObservedDurationNs / 1_000_000_000)},
		{"process", targetObject(p.Target)},
		{"libraries", librariesArray(p.Libraries)},
		{"files_accessed", filesArray(p.Files)},
		{"api_calls", apiCallsObject(p.APICalls)},
		{"statistics", jObject{
			{"total_events", jInt(int64(p.TotalEvents))},
			{"libraries_loaded", jInt(int64(p.LibrariesLoaded))},
			{"files_accessed", jInt(int64(p.FilesAccessed))},
			{"api_calls_made", jInt(int64(p.APICallsMade))},
			{"partial", jBool(p.Partial)},
		}},
	}
	return w.writeDocument(obj)
}

func targetObject(t profile.TargetIdentity) jObject {
	return jObject{
		{"pid", jUint(t.PID)},
		{"name", jNullableString(t.Name)},
		{"exe", jNullableString(t.ExecutablePath)},
		{"cmdline", jNullableString(t.CommandLine)},
		{"uid", jUint(t.UID)},
		{"gid", jUint(t.GID)},
		{"start_time", jString(tsfmt.FormatTimestamp(t.StartTime))},
	}
}

func librariesArray(libs []profile.Library) jval {
	arr := make(jArray, 0, len(libs))
	for _, l := range libs {
		arr = append(arr, jObject{
			{"short_name", jString(l.ShortName)},
			{"path", jString(l.Path)},
			{"first_seen", jString(tsfmt.FormatTimestamp(l.FirstSeen))},
		})
	}
	return arr
}

func filesArray(files []profile.FileAccess) jval {
	arr := make(jArray, 0, len(files))
	for _, f := range files {
		arr = append(arr, jObject{
			{"path", jString(f.Path)},
			{"type", jString(f.Type.String())},
			{"access_count", jInt(int64(f.AccessCount))},
			{"first_access", jString(tsfmt.FormatTimestamp(f.FirstAccess))},
			{"last_access", jString(tsfmt.FormatTimestamp(f.LastAccess))},
			{"mode", jString(f.Mode)},
		})
	}
	return arr
}

func apiCallsObject(calls []profile.APICall) jval {
	obj := make(jObject, 0, len(calls))
	for _, c := range calls {
		obj = append(obj, jField{c.FunctionName, jInt(int64(c.Count))})
	}
	return obj
}

// WriteSnapshot emits the Snapshot document (spec section 6.2).
func (w *Writer) WriteSnapshot(s snapshot.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	processes := make(jArray, 0, len(s.Processes))
	for _, p := range s.Processes {
		libs := make(jArray, 0, len(p.LibraryPaths))
		for _, l := range p.LibraryPaths {
			libs = append(libs, jString(l))
		}
		files := make(jArray, 0, len(p.FilePaths))
		for _, f := range p.FilePaths {
			files = append(files, jString(f))
		}
		processes = append(processes, jObject{
			{"pid", jInt(int64(p.PID))},
			{"name", jNullableString(p.Name)},
			{"exe", jNullableString(p.ExecutablePath)},
			{"running_as", jNullableString(p.RunningAs)},
			{"libraries", libs},
			{"files", files},
		})
	}

	obj := jObject{
		{"snapshot_version", jString(s.VersionTag)},
		{"generated_at", jString(tsfmt.FormatTimestamp(s.GeneratedAt))},
		{"hostname", jNullableString(s.Hostname)},
		{"kernel", jNullableString(s.Kernel)},
		{"processes", processes},
		{"summary", jObject{
			{"process_count", jInt(int64(s.Summary.ProcessCount))},
			{"library_count", jInt(int64(s.Summary.LibraryCount))},
			{"file_count", jInt(int64(s.Summary.FileCount))},
			{"partial", jBool(s.Partial)},
		}},
	}
	return w.writeDocument(obj)
}

// writeDocument emits a single-document payload (profile/snapshot): always
// pretty when the writer was constructed with FormatPretty, compact
// otherwise, and never wrapped in the array delimiters used for record
// streams.
func (w *Writer) writeDocument(obj jObject) error {
	w.sink.WriteString(marshal(obj, w.pretty()))
	w.sink.WriteString("\n")
	if err := w.sink.Flush(); err != nil {
		return fmt.Errorf("flush: %w: %w", err, tracererr.ErrWrite)
	}
	return nil
}

// Finalize closes out array-shaped output (the closing delimiter for
// FormatArray/FormatPretty), but only if WriteEvent actually opened one —
// WriteProfile/WriteSnapshot never do, so Finalize is a no-op-but-flush
// after either of those. It is idempotent and safe to call from a deferred
// cleanup.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return nil
	}
	w.finalized = true

	if w.arrayOpened {
		if w.pretty() {
			w.sink.WriteString("\n")
		}
		w.sink.WriteString("]\n")
	}
	if err := w.sink.Flush(); err != nil {
		return fmt.Errorf("flush: %w: %w", err, tracererr.ErrWrite)
	}
	return nil
}
