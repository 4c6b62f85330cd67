// Package pipeline implements the Driver (spec section 4.J/4.K): the single-
// threaded poll loop that wires the event pool, classifier, enricher,
// privacy filter, Filter Set, writer/aggregator and kernel producer
// together for the monitor and profile modes.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/classify"
	"github.com/marcoeg/crypto-tracer/internal/enrich"
	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/eventpool"
	"github.com/marcoeg/crypto-tracer/internal/filter"
	"github.com/marcoeg/crypto-tracer/internal/kerneltrace"
	"github.com/marcoeg/crypto-tracer/internal/lifecycle"
	"github.com/marcoeg/crypto-tracer/internal/metrics"
	"github.com/marcoeg/crypto-tracer/internal/privacy"
	"github.com/marcoeg/crypto-tracer/internal/procfsadapter"
	"github.com/marcoeg/crypto-tracer/internal/profile"
	"github.com/marcoeg/crypto-tracer/internal/writer"
)

// Driver owns every collaborator in the hot path for the duration of one
// command invocation. It is not safe for concurrent use (spec section 5:
// "the core pipeline is single-threaded").
type Driver struct {
	Producer    kerneltrace.Producer
	Pool        *eventpool.Pool
	Enricher    *enrich.Enricher
	Redactor    *privacy.Filter
	Filters     *filter.Set
	Writer      *writer.Writer
	Metrics     *metrics.Registry
	Logger      *zap.Logger
	PollBatch   int
	PollTimeout time.Duration
}

// translate maps a decoded kerneltrace.RawEvent onto a pool-acquired
// event.Record, converting the producer's monotonic timestamp to wall-clock
// nanoseconds (spec section 6.1) and running the deterministic
// classification rules (spec section 4.C) inline.
func (d *Driver) translate(raw *kerneltrace.RawEvent) *event.Record {
	rec, err := d.Pool.Acquire()
	if err != nil {
		d.Logger.Warn("event pool exhausted, dropping event", zap.Error(err))
		if d.Metrics != nil {
			d.Metrics.PoolExhausted.Inc()
		}
		return nil
	}

	wallNs := d.Producer.BootTime().UnixNano() + raw.TimestampNs

	rec.Timestamp = wallNs
	rec.PID = raw.PID
	rec.UID = raw.UID
	rec.ProcessName = raw.Comm

	switch raw.EventType {
	case kerneltrace.EventTypeFileOpen:
		rec.Kind = event.KindFileOpen
		rec.FilePath = raw.FileName
		rec.FileType = classify.ClassifyFile(raw.FileName)
		rec.OpenFlags = raw.OpenFlags
		rec.SyscallResult = raw.SyscallResult
	case kerneltrace.EventTypeLibLoad:
		rec.Kind = event.KindLibLoad
		rec.LibraryPath = raw.LibPath
		rec.LibraryShortName = classify.LibraryShortName(raw.LibPath)
	case kerneltrace.EventTypeProcessExec:
		rec.Kind = event.KindProcessExec
		rec.ParentPID = raw.ParentPID
		rec.CommandLine = raw.Cmdline
	case kerneltrace.EventTypeProcessExit:
		rec.Kind = event.KindProcessExit
		rec.ExitCode = raw.ExitCode
	case kerneltrace.EventTypeAPICall:
		rec.Kind = event.KindAPICall
		rec.FunctionName = raw.FunctionName
		rec.LibraryPath = raw.APILibrary
	default:
		rec.Kind = event.KindUnknown
	}
	return rec
}

// mandatoryKeep applies the two unconditional drops spec section 4.J step 2
// requires before the privacy filter and Filter Set ever see the record:
// FileOpen events the classifier couldn't identify, and LibLoad events for a
// library that isn't one of the recognised cryptographic libraries. This is
// not user-configurable filtering; it runs regardless of the Filter Set.
func mandatoryKeep(rec *event.Record) bool {
	switch rec.Kind {
	case event.KindFileOpen:
		return rec.FileType != classify.FileTypeUnknown
	case event.KindLibLoad:
		return classify.IsCryptographic(rec.LibraryPath, rec.LibraryShortName)
	default:
		return true
	}
}

// enrichAndRedact runs the Enricher then applies path redaction to every
// path-shaped field the policy covers (spec section 4.E), in that order:
// enrichment must see the real path to read /proc, redaction only affects
// what is reported.
func (d *Driver) enrichAndRedact(rec *event.Record) {
	d.Enricher.Enrich(rec)
	rec.FilePath, rec.LibraryPath, rec.ExecutablePath = d.Redactor.RedactRecordPaths(
		rec.FilePath, rec.LibraryPath, rec.ExecutablePath)
	rec.CommandLine = d.Redactor.RedactCommandLine(rec.CommandLine)
}

// RunMonitor drives the monitor/libs/files modes (spec section 4.J): poll,
// translate, enrich, filter, write, release — until shutdown is requested,
// then drain for up to lifecycle.DrainWindow before finalizing output.
func (d *Driver) RunMonitor(ctx context.Context, sd *lifecycle.Shutdown) error {
	defer func() {
		if err := d.Writer.Finalize(); err != nil {
			d.Logger.Warn("finalize output failed", zap.Error(err))
		}
	}()

	var drainDeadline time.Time
	draining := false

	for {
		if sd.Requested() && !draining {
			draining = true
			drainDeadline = lifecycle.DrainDeadline(time.Now())
			d.Logger.Info("shutdown requested, draining buffered events")
		}
		if draining && time.Now().After(drainDeadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		delivered, err := d.Producer.Poll(d.PollBatch, d.PollTimeout, func(raw *kerneltrace.RawEvent) {
			d.handle(raw)
		})
		if d.Metrics != nil {
			d.Metrics.PollBatches.Inc()
		}
		_ = delivered
		if err != nil {
			return err
		}
	}
}

func (d *Driver) handle(raw *kerneltrace.RawEvent) {
	rec := d.translate(raw)
	if rec == nil {
		return
	}
	defer d.Pool.Release(rec)

	if !mandatoryKeep(rec) {
		return
	}

	d.enrichAndRedact(rec)

	if !d.Filters.Match(rec) {
		if d.Metrics != nil {
			d.Metrics.EventsFiltered.Inc()
		}
		return
	}

	if err := d.Writer.WriteEvent(rec); err != nil {
		d.Logger.Error("write event failed", zap.Error(err))
		return
	}
	if d.Metrics != nil {
		d.Metrics.EventsWritten.Inc()
	}
}

// RunProfile drives the profile mode (spec section 4.H/4.K): every event
// for targetPID folds into an Aggregator instead of the writer directly.
// Collection stops, and the profile is finalized, on whichever of these
// comes first: shutdown requested, context cancellation, the duration
// elapsing, the target emitting a ProcessExit event, or procfs reporting the
// target no longer exists (TargetGone; spec section 7 - "finalize and emit a
// partial profile; exit cleanly", never a command failure). The profile is
// marked partial in every case except the duration elapsing.
func (d *Driver) RunProfile(ctx context.Context, sd *lifecycle.Shutdown, reader procfsadapter.Reader, target profile.TargetIdentity, duration time.Duration, generatedAtFn func() int64) (profile.Profile, error) {
	agg := profile.New(target.PID)
	start := time.Now()
	deadline := start.Add(duration)
	partial := false

	for {
		if sd.Requested() {
			partial = true
			break
		}
		if duration > 0 && time.Now().After(deadline) {
			break
		}
		if _, err := reader.ReadShortName(int(target.PID)); err != nil {
			partial = true
			d.Logger.Info("profile target gone", zap.Uint32("pid", target.PID))
			break
		}
		select {
		case <-ctx.Done():
			partial = true
		default:
		}
		if partial {
			break
		}

		_, err := d.Producer.Poll(d.PollBatch, d.PollTimeout, func(raw *kerneltrace.RawEvent) {
			if raw.PID != target.PID {
				return
			}
			rec := d.translate(raw)
			if rec == nil {
				return
			}
			defer d.Pool.Release(rec)
			if !mandatoryKeep(rec) {
				return
			}
			d.enrichAndRedact(rec)
			agg.AddEvent(rec)
		})
		if d.Metrics != nil {
			d.Metrics.PollBatches.Inc()
		}
		if err != nil {
			return profile.Profile{}, err
		}
		if agg.Exited() {
			partial = true
			d.Logger.Info("profile target exited", zap.Uint32("pid", target.PID))
			break
		}
	}

	observed := time.Since(start)
	return agg.Finalize(target, observed.Nanoseconds(), generatedAtFn(), partial), nil
}
