package writer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcoeg/crypto-tracer/internal/classify"
	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/profile"
	"github.com/marcoeg/crypto-tracer/internal/snapshot"
)

func TestWriteEventStreamFileOpen(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, FormatStream)

	rec := &event.Record{
		Kind:          event.KindFileOpen,
		Timestamp:     1609459200000000000,
		PID:           1234,
		UID:           1000,
		FilePath:      "/etc/ssl/certs/server.crt",
		FileType:      classify.FileTypeCertificate,
		SyscallResult: 3,
	}
	require.NoError(t, w.WriteEvent(rec))

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Equal(t, 1, strings.Count(out, "\n"))
	require.Contains(t, out, `"event_type":"file_open"`)
	require.Contains(t, out, `"timestamp":"2021-01-01T00:00:00.000000Z"`)
	require.Contains(t, out, `"file_type":"certificate"`)
	require.Contains(t, out, `"file":"/etc/ssl/certs/server.crt"`)
	require.False(t, strings.HasPrefix(out, "["))
}

func TestWriteEventLibLoad(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, FormatStream)

	require.NoError(t, w.WriteEvent(&event.Record{
		Kind:             event.KindLibLoad,
		PID:              1,
		LibraryPath:      "/usr/lib/libssl.so.1.1",
		LibraryShortName: "libssl",
	}))
	require.Contains(t, buf.String(), `"library_name":"libssl"`)
}

func TestArrayFormatDelimitersAndFinalizeIdempotent(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, FormatArray)

	require.NoError(t, w.WriteEvent(&event.Record{Kind: event.KindProcessExit, PID: 1, ExitCode: 0}))
	require.NoError(t, w.WriteEvent(&event.Record{Kind: event.KindProcessExit, PID: 2, ExitCode: 1}))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Finalize()) // idempotent

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "["))
	require.True(t, strings.HasSuffix(out, "]\n"))
	require.Equal(t, 1, strings.Count(out, "]"))
}

func TestWriteProfileIsNotArrayWrapped(t *testing.T) {
	for _, format := range []Format{FormatArray, FormatPretty} {
		var buf bytes.Buffer
		w := New(&buf, format)

		p := profile.Profile{VersionTag: "1", Target: profile.TargetIdentity{PID: 5678}}
		require.NoError(t, w.WriteProfile(p))
		require.NoError(t, w.Finalize())

		out := strings.TrimSpace(buf.String())
		require.True(t, strings.HasPrefix(out, "{"), "got %q", out)
		require.True(t, strings.HasSuffix(out, "}"), "got %q", out)
	}
}

func TestWriteSnapshotIsNotArrayWrapped(t *testing.T) {
	for _, format := range []Format{FormatArray, FormatPretty} {
		var buf bytes.Buffer
		w := New(&buf, format)

		require.NoError(t, w.WriteSnapshot(snapshot.Snapshot{VersionTag: "1"}))
		require.NoError(t, w.Finalize())

		out := strings.TrimSpace(buf.String())
		require.True(t, strings.HasPrefix(out, "{"), "got %q", out)
		require.True(t, strings.HasSuffix(out, "}"), "got %q", out)
	}
}

func TestNullableFieldsRenderNullNotEmptyString(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, FormatStream)
	require.NoError(t, w.WriteEvent(&event.Record{Kind: event.KindFileOpen, PID: 1}))
	require.Contains(t, buf.String(), `"process":null`)
	require.NotContains(t, buf.String(), `"process":""`)
}
