package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/internal/enrich"
	"github.com/marcoeg/crypto-tracer/internal/eventpool"
	"github.com/marcoeg/crypto-tracer/internal/filter"
	"github.com/marcoeg/crypto-tracer/internal/kerneltrace"
	"github.com/marcoeg/crypto-tracer/internal/lifecycle"
	"github.com/marcoeg/crypto-tracer/internal/privacy"
	"github.com/marcoeg/crypto-tracer/internal/procfsadapter"
	"github.com/marcoeg/crypto-tracer/internal/profile"
	"github.com/marcoeg/crypto-tracer/internal/writer"
)

// fakeProducer delivers one fixed batch of raw events on its first Poll
// call, then signals the driver to stop by requesting shutdown.
type fakeProducer struct {
	batch []*kerneltrace.RawEvent
	sd    *lifecycle.Shutdown
	polls int
}

func (f *fakeProducer) Poll(maxEvents int, timeout time.Duration, cb func(*kerneltrace.RawEvent)) (int, error) {
	f.polls++
	if f.polls == 1 {
		for _, ev := range f.batch {
			cb(ev)
		}
		f.sd.Request()
		return len(f.batch), nil
	}
	return 0, nil
}
func (f *fakeProducer) Stats() kerneltrace.ProducerStats { return kerneltrace.ProducerStats{} }
func (f *fakeProducer) BootTime() time.Time              { return time.Unix(0, 0) }
func (f *fakeProducer) Close() error                     { return nil }

type fakeReader struct{ gone bool }

func (r *fakeReader) ReadShortName(pid int) (string, error) {
	if r.gone {
		return "", errors.New("not found")
	}
	return "nginx", nil
}
func (r *fakeReader) ReadExeLink(pid int) (string, error)   { return "/usr/sbin/nginx", nil }
func (r *fakeReader) ReadArgVector(pid int) (string, error) { return "", nil }
func (r *fakeReader) ReadRunningAs(pid int) (string, error) { return "nginx", nil }
func (r *fakeReader) ListProcesses() ([]int, error)         { return nil, nil }
func (r *fakeReader) ListMappedLibraryPaths(pid int) ([]string, error) {
	return nil, nil
}
func (r *fakeReader) ListOpenFilePaths(pid int) ([]string, error) { return nil, nil }

func newTestDriver(t *testing.T, producer kerneltrace.Producer, reader procfsadapter.Reader, buf *bytes.Buffer, filters *filter.Set) *Driver {
	return &Driver{
		Producer:    producer,
		Pool:        eventpool.New(8),
		Enricher:    enrich.New(reader, zap.NewNop()),
		Redactor:    privacy.New(false),
		Filters:     filters,
		Writer:      writer.New(buf, writer.FormatStream),
		Logger:      zap.NewNop(),
		PollBatch:   8,
		PollTimeout: 10 * time.Millisecond,
	}
}

func TestRunMonitorWritesFilteredEvent(t *testing.T) {
	sd := lifecycle.New()
	defer sd.Stop()

	batch := []*kerneltrace.RawEvent{
		{TimestampNs: 0, PID: 1234, UID: 1000, Comm: "openssl", EventType: kerneltrace.EventTypeFileOpen,
			FileName: "/etc/ssl/certs/server.crt", SyscallResult: 3},
	}
	fp := &fakeProducer{batch: batch, sd: sd}

	var buf bytes.Buffer
	d := newTestDriver(t, fp, &fakeReader{}, &buf, filter.New())

	require.NoError(t, d.RunMonitor(context.Background(), sd))
	require.Contains(t, buf.String(), `"file":"/etc/ssl/certs/server.crt"`)
	require.Equal(t, 0, d.Pool.InUse())
}

func TestRunMonitorAppliesFilterSet(t *testing.T) {
	sd := lifecycle.New()
	defer sd.Stop()

	batch := []*kerneltrace.RawEvent{
		{PID: 1, Comm: "a", EventType: kerneltrace.EventTypeFileOpen, FileName: "/etc/ssl/certs/server.crt"},
	}
	fp := &fakeProducer{batch: batch, sd: sd}

	var buf bytes.Buffer
	d := newTestDriver(t, fp, &fakeReader{}, &buf, filter.New(filter.PID(999)))

	require.NoError(t, d.RunMonitor(context.Background(), sd))
	require.Equal(t, "", buf.String())
}

func TestRunMonitorDropsNonCryptographicLibrary(t *testing.T) {
	sd := lifecycle.New()
	defer sd.Stop()

	batch := []*kerneltrace.RawEvent{
		{PID: 1, Comm: "a", EventType: kerneltrace.EventTypeLibLoad, LibPath: "/usr/lib/libssl.so.1.1"},
		{PID: 1, Comm: "a", EventType: kerneltrace.EventTypeLibLoad, LibPath: "/usr/lib/libfoo.so"},
	}
	fp := &fakeProducer{batch: batch, sd: sd}

	var buf bytes.Buffer
	d := newTestDriver(t, fp, &fakeReader{}, &buf, filter.New())

	require.NoError(t, d.RunMonitor(context.Background(), sd))
	require.Contains(t, buf.String(), `"library_name":"libssl"`)
	require.NotContains(t, buf.String(), "libfoo")
	require.Equal(t, 0, d.Pool.InUse())
}

func TestRunMonitorDropsUnclassifiedFile(t *testing.T) {
	sd := lifecycle.New()
	defer sd.Stop()

	batch := []*kerneltrace.RawEvent{
		{PID: 1, Comm: "a", EventType: kerneltrace.EventTypeFileOpen, FileName: "/etc/ssl/certs/server.crt"},
		{PID: 1, Comm: "a", EventType: kerneltrace.EventTypeFileOpen, FileName: "/tmp/irrelevant"},
	}
	fp := &fakeProducer{batch: batch, sd: sd}

	var buf bytes.Buffer
	d := newTestDriver(t, fp, &fakeReader{}, &buf, filter.New())

	require.NoError(t, d.RunMonitor(context.Background(), sd))
	require.Contains(t, buf.String(), "server.crt")
	require.NotContains(t, buf.String(), "irrelevant")
	require.Equal(t, 0, d.Pool.InUse())
}

func TestRunProfileFinalizesOnTargetGone(t *testing.T) {
	sd := lifecycle.New()
	defer sd.Stop()

	batch := []*kerneltrace.RawEvent{
		{PID: 5678, EventType: kerneltrace.EventTypeLibLoad, LibPath: "/usr/lib/libssl.so.1.1"},
	}
	fp := &fakeProducer{batch: batch, sd: sd}

	var buf bytes.Buffer
	d := newTestDriver(t, fp, &fakeReader{gone: true}, &buf, filter.New())

	target := profile.TargetIdentity{PID: 5678, Name: "vault"}
	p, err := d.RunProfile(context.Background(), sd, &fakeReader{gone: true}, target, time.Minute, func() int64 { return 100 })
	require.NoError(t, err)
	require.True(t, p.Partial)
}
