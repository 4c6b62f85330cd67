package profile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcoeg/crypto-tracer/internal/classify"
	"github.com/marcoeg/crypto-tracer/internal/event"
)

func TestAggregatorFileAccessCounts(t *testing.T) {
	const target = uint32(5678)
	a := New(target)

	a.AddEvent(&event.Record{Kind: event.KindProcessExec, PID: target})
	a.AddEvent(&event.Record{
		Kind: event.KindLibLoad, PID: target,
		LibraryPath: "/usr/lib/libssl.so.1.1", LibraryShortName: "libssl", Timestamp: 1,
	})
	for i := 0; i < 3; i++ {
		a.AddEvent(&event.Record{
			Kind: event.KindFileOpen, PID: target,
			FilePath: "/etc/ssl/private/server.key", FileType: classify.FileTypePrivateKey,
			Timestamp: int64(10 + i),
		})
	}
	a.AddEvent(&event.Record{Kind: event.KindAPICall, PID: target, FunctionName: "SSL_connect"})
	a.AddEvent(&event.Record{Kind: event.KindProcessExit, PID: target, ExitCode: 0})

	require.True(t, a.Exited())

	p := a.Finalize(TargetIdentity{PID: target}, 5_000_000_000, 100, true)

	require.Len(t, p.Libraries, 1)
	require.Equal(t, "libssl", p.Libraries[0].ShortName)

	require.Len(t, p.Files, 1)
	require.Equal(t, "/etc/ssl/private/server.key", p.Files[0].Path)
	require.Equal(t, 3, p.Files[0].AccessCount)
	require.LessOrEqual(t, p.Files[0].FirstAccess, p.Files[0].LastAccess)

	require.Len(t, p.APICalls, 1)
	require.Equal(t, 1, p.APICalls[0].Count)

	require.Equal(t, 1, p.LibrariesLoaded)
	require.Equal(t, 1, p.FilesAccessed)
	require.Equal(t, 1, p.APICallsMade)
	require.True(t, p.Partial)
}

func TestAggregatorIgnoresUnknownFileType(t *testing.T) {
	a := New(1)
	a.AddEvent(&event.Record{Kind: event.KindFileOpen, PID: 1, FilePath: "/tmp/foo.txt", FileType: classify.FileTypeUnknown})
	p := a.Finalize(TargetIdentity{PID: 1}, 0, 0, false)
	require.Empty(t, p.Files)
}

func TestAggregatorIgnoresOtherPIDs(t *testing.T) {
	a := New(1)
	a.AddEvent(&event.Record{Kind: event.KindLibLoad, PID: 2, LibraryPath: "/usr/lib/libssl.so"})
	p := a.Finalize(TargetIdentity{PID: 1}, 0, 0, false)
	require.Empty(t, p.Libraries)
	require.Equal(t, 0, p.TotalEvents)
}
